// Package handlers provides HTTP handlers for API endpoints
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"med-shift-bot/internal/models"
	"med-shift-bot/internal/services"
)

// AttendanceAPI is the slice of the ledger the HTTP layer drives
type AttendanceAPI interface {
	CheckIn(ctx context.Context, employeeID string, coord models.Coordinate) (*services.CheckInResult, error)
	CheckOut(ctx context.Context, employeeID string, coord models.Coordinate, overtimeRequested bool, overtimeReason string) (*services.CheckOutResult, error)
	RecordManualPing(ctx context.Context, employeeID string, coord models.Coordinate, kind string) (*services.PingResult, error)
}

// SweepRunner executes due verifications; driven by the tick endpoint and
// the in-process ticker
type SweepRunner interface {
	RunDue(ctx context.Context, now time.Time) (int, error)
}

// AttendanceHandler handles check-in/check-out/location requests
type AttendanceHandler struct {
	ledger AttendanceAPI
	sweep  SweepRunner
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(ledger AttendanceAPI, sweep SweepRunner) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, sweep: sweep}
}

type attendanceRequest struct {
	EmployeeID        string  `json:"employee_id"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Kind              string  `json:"kind,omitempty"`
	OvertimeRequested bool    `json:"overtime_requested,omitempty"`
	OvertimeReason    string  `json:"overtime_reason,omitempty"`
}

// HandleCheckIn processes POST /api/checkin
func (h *AttendanceHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.CheckIn(r.Context(), req.EmployeeID, models.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          result.Status,
		"within_range":    result.WithinRange,
		"distance_meters": result.DistanceMeters,
		"facility_name":   result.FacilityName,
	})
}

// HandleCheckOut processes POST /api/checkout
func (h *AttendanceHandler) HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.CheckOut(r.Context(), req.EmployeeID,
		models.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		req.OvertimeRequested, req.OvertimeReason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           result.Status,
		"overtime_minutes": result.OvertimeMinutes,
	})
}

// HandleLocation processes POST /api/location (ad-hoc location updates)
func (h *AttendanceHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.RecordManualPing(r.Context(), req.EmployeeID,
		models.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude}, req.Kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"within_range":    result.WithinRange,
		"distance_meters": result.DistanceMeters,
	})
}

// HandleRunDue processes POST /api/verifications/run (external cron tick)
func (h *AttendanceHandler) HandleRunDue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	processed, err := h.sweep.RunDue(r.Context(), time.Now())
	if err != nil {
		log.Printf("Sweep failed: %v", err)
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

func (h *AttendanceHandler) decode(w http.ResponseWriter, r *http.Request) (*attendanceRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if req.EmployeeID == "" {
		http.Error(w, "employee_id is required", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNoShiftToday),
		errors.Is(err, services.ErrNoOpenCheckIn),
		errors.Is(err, services.ErrFacilityNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCheckedIn):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("Error handling attendance request: %v", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
