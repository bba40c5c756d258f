package repository

import (
	"context"
	"fmt"

	"med-shift-bot/internal/models"
)

// PocketBaseEmployeeStore implements EmployeeStore
type PocketBaseEmployeeStore struct {
	client *pbClient
}

// NewPocketBaseEmployeeStore creates the store
func NewPocketBaseEmployeeStore(baseURL string) *PocketBaseEmployeeStore {
	return &PocketBaseEmployeeStore{client: newPBClient(baseURL)}
}

type employeeRow struct {
	ID             string `json:"id"`
	TelegramChatID int64  `json:"telegram_chat_id"`
	Name           string `json:"name"`
	EmployeeCode   string `json:"employee_code"`
	Department     string `json:"department"`
	ManagerID      string `json:"manager_id"`
	GroupID        string `json:"group_id"`
	IsActive       bool   `json:"is_active"`
}

func (r employeeRow) toModel() *models.Employee {
	return &models.Employee{
		ID:             r.ID,
		TelegramChatID: r.TelegramChatID,
		Name:           r.Name,
		EmployeeCode:   r.EmployeeCode,
		Department:     r.Department,
		ManagerID:      r.ManagerID,
		GroupID:        r.GroupID,
		IsActive:       r.IsActive,
	}
}

func (s *PocketBaseEmployeeStore) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	var row employeeRow
	found, err := s.client.getOne(ctx, "employees", id, &row)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("employee %s not found", id)
	}
	return row.toModel(), nil
}

// PocketBaseFacilityStore implements FacilityStore
type PocketBaseFacilityStore struct {
	client *pbClient
}

// NewPocketBaseFacilityStore creates the store
func NewPocketBaseFacilityStore(baseURL string) *PocketBaseFacilityStore {
	return &PocketBaseFacilityStore{client: newPBClient(baseURL)}
}

func (s *PocketBaseFacilityStore) ListActive(ctx context.Context) ([]models.Facility, error) {
	var rows []struct {
		ID           string  `json:"id"`
		Name         string  `json:"name"`
		Latitude     float64 `json:"latitude"`
		Longitude    float64 `json:"longitude"`
		RadiusMeters float64 `json:"radius_meters"`
		IsActive     bool    `json:"is_active"`
	}
	// sort by id keeps nearest-facility tie-breaking stable
	if err := s.client.list(ctx, "facilities", "is_active=true", "+id", 200, &rows); err != nil {
		return nil, err
	}

	out := make([]models.Facility, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Facility{
			ID:           r.ID,
			Name:         r.Name,
			Center:       models.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
			RadiusMeters: r.RadiusMeters,
			IsActive:     r.IsActive,
		})
	}
	return out, nil
}

// PocketBaseShiftStore implements ShiftStore
type PocketBaseShiftStore struct {
	client *pbClient
}

// NewPocketBaseShiftStore creates the store
func NewPocketBaseShiftStore(baseURL string) *PocketBaseShiftStore {
	return &PocketBaseShiftStore{client: newPBClient(baseURL)}
}

func (s *PocketBaseShiftStore) FindShift(ctx context.Context, employeeID, date string) (*models.Shift, error) {
	var rows []struct {
		ID            string `json:"id"`
		EmployeeID    string `json:"employee_id"`
		Date          string `json:"date"`
		ExpectedStart string `json:"expected_start"`
		ExpectedEnd   string `json:"expected_end"`
	}
	filter := fmt.Sprintf("employee_id='%s' && date='%s'", employeeID, date)
	if err := s.client.list(ctx, "shifts", filter, "", 1, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.Shift{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		Date:          r.Date,
		ExpectedStart: r.ExpectedStart,
		ExpectedEnd:   r.ExpectedEnd,
	}, nil
}

// PocketBaseGroupStore implements GroupStore
type PocketBaseGroupStore struct {
	client *pbClient
}

// NewPocketBaseGroupStore creates the store
func NewPocketBaseGroupStore(baseURL string) *PocketBaseGroupStore {
	return &PocketBaseGroupStore{client: newPBClient(baseURL)}
}

func (s *PocketBaseGroupStore) GetByID(ctx context.Context, id string) (*models.Group, error) {
	var row struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		ManagerID string `json:"manager_id"`
	}
	found, err := s.client.getOne(ctx, "groups", id, &row)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("group %s not found", id)
	}
	return &models.Group{ID: row.ID, Name: row.Name, ManagerID: row.ManagerID}, nil
}
