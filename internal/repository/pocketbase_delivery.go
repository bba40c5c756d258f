package repository

import (
	"context"
	"fmt"
	"time"

	"med-shift-bot/internal/models"
)

// PocketBaseVerificationStore implements VerificationStore
type PocketBaseVerificationStore struct {
	client *pbClient
}

// NewPocketBaseVerificationStore creates the store
func NewPocketBaseVerificationStore(baseURL string) *PocketBaseVerificationStore {
	return &PocketBaseVerificationStore{client: newPBClient(baseURL)}
}

type verificationRow struct {
	ID                 string `json:"id"`
	EmployeeID         string `json:"employee_id"`
	AttendanceRecordID string `json:"attendance_record_id"`
	Kind               string `json:"kind"`
	ScheduledFor       string `json:"scheduled_for"`
	Executed           bool   `json:"executed"`
	Result             string `json:"result"`
}

func (r verificationRow) toModel() models.ScheduledVerification {
	v := models.ScheduledVerification{
		ID:                 r.ID,
		EmployeeID:         r.EmployeeID,
		AttendanceRecordID: r.AttendanceRecordID,
		Kind:               r.Kind,
		Executed:           r.Executed,
		Result:             r.Result,
	}
	if t := parsePBTime(r.ScheduledFor); t != nil {
		v.ScheduledFor = *t
	}
	return v
}

func (s *PocketBaseVerificationStore) Create(ctx context.Context, v *models.ScheduledVerification) error {
	id, err := s.client.create(ctx, "scheduled_verifications", map[string]any{
		"employee_id":          v.EmployeeID,
		"attendance_record_id": v.AttendanceRecordID,
		"kind":                 v.Kind,
		"scheduled_for":        pbTime(v.ScheduledFor),
		"executed":             false,
	})
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

func (s *PocketBaseVerificationStore) ListDue(ctx context.Context, now time.Time) ([]models.ScheduledVerification, error) {
	filter := fmt.Sprintf("executed=false && result='' && scheduled_for<='%s'", pbTime(now))
	var rows []verificationRow
	if err := s.client.list(ctx, "scheduled_verifications", filter, "+scheduled_for", 500, &rows); err != nil {
		return nil, err
	}
	out := make([]models.ScheduledVerification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// MarkExecuted flips a pending item to executed. A row that is already
// executed or cancelled stays as it is and the claim reports false, so a
// concurrent sweep cannot run the same item twice.
func (s *PocketBaseVerificationStore) MarkExecuted(ctx context.Context, id, result string) (bool, error) {
	var row verificationRow
	found, err := s.client.getOne(ctx, "scheduled_verifications", id, &row)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("verification %s not found", id)
	}
	if row.Executed || row.Result != "" {
		return false, nil
	}

	err = s.client.patch(ctx, "scheduled_verifications", id, map[string]any{
		"executed": true,
		"result":   result,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PocketBaseVerificationStore) CancelForRecord(ctx context.Context, attendanceRecordID string) (int, error) {
	filter := fmt.Sprintf("attendance_record_id='%s' && executed=false && result=''", attendanceRecordID)
	var rows []verificationRow
	if err := s.client.list(ctx, "scheduled_verifications", filter, "", 500, &rows); err != nil {
		return 0, err
	}

	cancelled := 0
	for _, r := range rows {
		err := s.client.patch(ctx, "scheduled_verifications", r.ID, map[string]any{
			"result": models.ResultCancelled,
		})
		if err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

// PocketBaseSupervisorStore implements SupervisorStore
type PocketBaseSupervisorStore struct {
	client *pbClient
}

// NewPocketBaseSupervisorStore creates the store
func NewPocketBaseSupervisorStore(baseURL string) *PocketBaseSupervisorStore {
	return &PocketBaseSupervisorStore{client: newPBClient(baseURL)}
}

func (s *PocketBaseSupervisorStore) ListEligible(ctx context.Context, ownerID string, maxFailures int) ([]models.Supervisor, error) {
	filter := fmt.Sprintf("owner_id='%s' && is_active=true && consecutive_failures<%d", ownerID, maxFailures)
	var rows []struct {
		ID                  string `json:"id"`
		OwnerID             string `json:"owner_id"`
		DisplayName         string `json:"display_name"`
		ChannelAddress      string `json:"channel_address"`
		Priority            int    `json:"priority"`
		IsActive            bool   `json:"is_active"`
		ConsecutiveFailures int    `json:"consecutive_failures"`
		LastUsedAt          string `json:"last_used_at"`
	}
	if err := s.client.list(ctx, "supervisors", filter, "+priority", 100, &rows); err != nil {
		return nil, err
	}

	out := make([]models.Supervisor, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Supervisor{
			ID:                  r.ID,
			OwnerID:             r.OwnerID,
			DisplayName:         r.DisplayName,
			ChannelAddress:      r.ChannelAddress,
			Priority:            r.Priority,
			IsActive:            r.IsActive,
			ConsecutiveFailures: r.ConsecutiveFailures,
			LastUsedAt:          parsePBTime(r.LastUsedAt),
		})
	}
	return out, nil
}

// IncrementFailures uses PocketBase's "+" field modifier so two deliveries
// failing against the same supervisor both land as increments, not a
// read-modify-write race.
func (s *PocketBaseSupervisorStore) IncrementFailures(ctx context.Context, id string) error {
	return s.client.patch(ctx, "supervisors", id, map[string]any{
		"consecutive_failures+": 1,
	})
}

func (s *PocketBaseSupervisorStore) ResetFailures(ctx context.Context, id string, usedAt time.Time) error {
	return s.client.patch(ctx, "supervisors", id, map[string]any{
		"consecutive_failures": 0,
		"last_used_at":         pbTime(usedAt),
	})
}

// PocketBaseDeliveryLogStore implements DeliveryLogStore
type PocketBaseDeliveryLogStore struct {
	client *pbClient
}

// NewPocketBaseDeliveryLogStore creates the store
func NewPocketBaseDeliveryLogStore(baseURL string) *PocketBaseDeliveryLogStore {
	return &PocketBaseDeliveryLogStore{client: newPBClient(baseURL)}
}

func (s *PocketBaseDeliveryLogStore) Create(ctx context.Context, entry *models.DeliveryAttemptLog) error {
	id, err := s.client.create(ctx, "delivery_attempts", map[string]any{
		"message_id":     entry.MessageID,
		"sender_kind":    entry.SenderKind,
		"sender_id":      entry.SenderID,
		"success":        entry.Success,
		"error":          entry.Error,
		"attempt_number": entry.AttemptNumber,
		"attempted_at":   pbTime(entry.Timestamp),
	})
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}
