package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"med-shift-bot/internal/models"
)

// PocketBaseAttendanceStore implements AttendanceStore
type PocketBaseAttendanceStore struct {
	client *pbClient
}

// NewPocketBaseAttendanceStore creates the store
func NewPocketBaseAttendanceStore(baseURL string) *PocketBaseAttendanceStore {
	return &PocketBaseAttendanceStore{client: newPBClient(baseURL)}
}

type attendanceRow struct {
	ID              string   `json:"id"`
	EmployeeID      string   `json:"employee_id"`
	ShiftID         string   `json:"shift_id"`
	Date            string   `json:"date"`
	Status          string   `json:"status"`
	CheckInTime     string   `json:"check_in_time"`
	CheckInLat      *float64 `json:"check_in_lat"`
	CheckInLng      *float64 `json:"check_in_lng"`
	CheckOutTime    string   `json:"check_out_time"`
	CheckOutLat     *float64 `json:"check_out_lat"`
	CheckOutLng     *float64 `json:"check_out_lng"`
	OvertimeMinutes int      `json:"overtime_minutes"`
	OvertimeReason  string   `json:"overtime_reason"`
}

func (r attendanceRow) toModel() *models.AttendanceRecord {
	rec := &models.AttendanceRecord{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		ShiftID:         r.ShiftID,
		Date:            r.Date,
		Status:          r.Status,
		CheckInTime:     parsePBTime(r.CheckInTime),
		CheckOutTime:    parsePBTime(r.CheckOutTime),
		OvertimeMinutes: r.OvertimeMinutes,
		OvertimeReason:  r.OvertimeReason,
	}
	if r.CheckInLat != nil && r.CheckInLng != nil {
		rec.CheckInCoord = &models.Coordinate{Latitude: *r.CheckInLat, Longitude: *r.CheckInLng}
	}
	if r.CheckOutLat != nil && r.CheckOutLng != nil {
		rec.CheckOutCoord = &models.Coordinate{Latitude: *r.CheckOutLat, Longitude: *r.CheckOutLng}
	}
	return rec
}

func (s *PocketBaseAttendanceStore) FindForDate(ctx context.Context, employeeID, date string) (*models.AttendanceRecord, error) {
	var rows []attendanceRow
	filter := fmt.Sprintf("employee_id='%s' && date='%s'", employeeID, date)
	if err := s.client.list(ctx, "attendance", filter, "", 1, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

func (s *PocketBaseAttendanceStore) Get(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	var row attendanceRow
	found, err := s.client.getOne(ctx, "attendance", id, &row)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return row.toModel(), nil
}

func (s *PocketBaseAttendanceStore) Create(ctx context.Context, rec *models.AttendanceRecord) error {
	id, err := s.client.create(ctx, "attendance", map[string]any{
		"employee_id": rec.EmployeeID,
		"shift_id":    rec.ShiftID,
		"date":        rec.Date,
		"status":      rec.Status,
	})
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// ClaimCheckIn re-reads the record and only writes the check-in when no
// check-in time is present yet. The ledger's process-level mutex serializes
// local callers; this read-check-write is the cross-process guard against a
// second deployment double-claiming.
func (s *PocketBaseAttendanceStore) ClaimCheckIn(ctx context.Context, id string, at time.Time, coord models.Coordinate, status string) (bool, error) {
	var row attendanceRow
	found, err := s.client.getOne(ctx, "attendance", id, &row)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("attendance record %s not found", id)
	}
	if row.CheckInTime != "" {
		return false, nil
	}

	err = s.client.patch(ctx, "attendance", id, map[string]any{
		"check_in_time": pbTime(at),
		"check_in_lat":  coord.Latitude,
		"check_in_lng":  coord.Longitude,
		"status":        status,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PocketBaseAttendanceStore) SetCheckOut(ctx context.Context, id string, at time.Time, coord models.Coordinate, overtimeMinutes int, overtimeReason string) error {
	return s.client.patch(ctx, "attendance", id, map[string]any{
		"check_out_time":   pbTime(at),
		"check_out_lat":    coord.Latitude,
		"check_out_lng":    coord.Longitude,
		"overtime_minutes": overtimeMinutes,
		"overtime_reason":  overtimeReason,
	})
}

// PocketBasePingStore implements PingStore
type PocketBasePingStore struct {
	client *pbClient
}

// NewPocketBasePingStore creates the store
func NewPocketBasePingStore(baseURL string) *PocketBasePingStore {
	return &PocketBasePingStore{client: newPBClient(baseURL)}
}

func (s *PocketBasePingStore) Create(ctx context.Context, ping *models.LocationPing) error {
	payload := map[string]any{
		"employee_id":          ping.EmployeeID,
		"latitude":             ping.Coord.Latitude,
		"longitude":            ping.Coord.Longitude,
		"kind":                 ping.Kind,
		"attendance_record_id": ping.AttendanceRecordID,
		"pinged_at":            pbTime(ping.Timestamp),
	}
	distanceText := "no distance"
	if ping.DistanceMeters != nil {
		payload["distance_meters"] = *ping.DistanceMeters
		distanceText = fmt.Sprintf("%.0fm", *ping.DistanceMeters)
	}
	id, err := s.client.create(ctx, "location_pings", payload)
	if err != nil {
		return err
	}
	ping.ID = id
	log.Printf("💾 Saved %s ping for employee %s (%s)", ping.Kind, ping.EmployeeID, distanceText)
	return nil
}
