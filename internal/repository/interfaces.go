// Package repository defines repository interfaces for data access
package repository

import (
	"context"
	"time"

	"med-shift-bot/internal/models"
)

// Clock abstracts wall-clock time so services can be tested at fixed instants
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FacilityStore exposes the active geofenced facilities
type FacilityStore interface {
	// ListActive returns active facilities in stable id order
	ListActive(ctx context.Context) ([]models.Facility, error)
}

// ShiftStore looks up the planned shift for an employee on a date
type ShiftStore interface {
	// FindShift returns nil when no shift is planned for that date
	FindShift(ctx context.Context, employeeID, date string) (*models.Shift, error)
}

// AttendanceStore owns AttendanceRecord rows
type AttendanceStore interface {
	// FindForDate returns nil when no record exists for that employee/date
	FindForDate(ctx context.Context, employeeID, date string) (*models.AttendanceRecord, error)
	// Get returns the record by id
	Get(ctx context.Context, id string) (*models.AttendanceRecord, error)
	// Create inserts a new record and fills in its ID
	Create(ctx context.Context, rec *models.AttendanceRecord) error
	// ClaimCheckIn records check-in time/coord/status only if the record has
	// no check-in yet. Returns false when another caller already claimed it.
	ClaimCheckIn(ctx context.Context, id string, at time.Time, coord models.Coordinate, status string) (bool, error)
	// SetCheckOut records check-out time/coord and overtime on the record
	SetCheckOut(ctx context.Context, id string, at time.Time, coord models.Coordinate, overtimeMinutes int, overtimeReason string) error
}

// PingStore appends LocationPing audit rows; pings are never mutated
type PingStore interface {
	Create(ctx context.Context, ping *models.LocationPing) error
}

// VerificationStore owns ScheduledVerification work items
type VerificationStore interface {
	// Create inserts one pending verification and fills in its ID
	Create(ctx context.Context, v *models.ScheduledVerification) error
	// ListDue returns pending items with scheduledFor <= now
	ListDue(ctx context.Context, now time.Time) ([]models.ScheduledVerification, error)
	// MarkExecuted atomically flips a pending item to executed with the given
	// result. Returns false when the item was already executed or cancelled,
	// so concurrent sweeps cannot double-run an item.
	MarkExecuted(ctx context.Context, id, result string) (bool, error)
	// CancelForRecord marks every pending item for the record as cancelled
	// and returns how many were cancelled. Executed items are untouched.
	CancelForRecord(ctx context.Context, attendanceRecordID string) (int, error)
}

// SupervisorStore exposes the fallback sender chain per primary contact
type SupervisorStore interface {
	// ListEligible returns active supervisors for the owner whose
	// consecutive failure count is below maxFailures, ascending by priority
	ListEligible(ctx context.Context, ownerID string, maxFailures int) ([]models.Supervisor, error)
	// IncrementFailures atomically bumps the consecutive failure counter
	IncrementFailures(ctx context.Context, id string) error
	// ResetFailures clears the counter and stamps the last-used time
	ResetFailures(ctx context.Context, id string, usedAt time.Time) error
}

// EmployeeStore resolves staff contacts
type EmployeeStore interface {
	GetByID(ctx context.Context, id string) (*models.Employee, error)
}

// GroupStore resolves ward/department groups
type GroupStore interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
}

// DeliveryLogStore appends one row per delivery attempt
type DeliveryLogStore interface {
	Create(ctx context.Context, entry *models.DeliveryAttemptLog) error
}
