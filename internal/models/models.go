// Package models contains data structures for the application
package models

import (
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Facility represents a hospital site with a geofence around its center
type Facility struct {
	ID           string
	Name         string
	Center       Coordinate
	RadiusMeters float64 // 0 means "use the configured default radius"
	IsActive     bool
}

// Shift is the planned working window for one employee on one date
type Shift struct {
	ID            string
	EmployeeID    string
	Date          string // YYYY-MM-DD
	ExpectedStart string // wall clock, "15:04:05"
	ExpectedEnd   string // wall clock, "15:04:05"
}

// Attendance status values
const (
	StatusPending = "pending"
	StatusPresent = "present"
	StatusLate    = "late"
	StatusGap     = "gap"
	StatusAbsent  = "absent"
)

// AttendanceRecord tracks one employee's presence for one date.
// At most one open (checked-in, not checked-out) record exists per
// employee and date.
type AttendanceRecord struct {
	ID              string
	EmployeeID      string
	ShiftID         string
	Date            string // YYYY-MM-DD
	Status          string
	CheckInTime     *time.Time
	CheckInCoord    *Coordinate
	CheckOutTime    *time.Time
	CheckOutCoord   *Coordinate
	OvertimeMinutes int
	OvertimeReason  string
}

// Open reports whether the record is checked in but not yet checked out.
func (r *AttendanceRecord) Open() bool {
	return r.CheckInTime != nil && r.CheckOutTime == nil
}

// LocationPing kinds
const (
	PingCheckIn  = "check_in"
	PingCheckOut = "check_out"
	PingPeriodic = "periodic"
	PingManual   = "manual"
)

// LocationPing is one append-only location audit entry
type LocationPing struct {
	ID                 string
	EmployeeID         string
	Coord              Coordinate
	Kind               string
	DistanceMeters     *float64 // to the nearest active facility; nil when not evaluated
	AttendanceRecordID string
	Timestamp          time.Time
}

// ScheduledVerification kinds
const (
	VerifyPeriodic    = "periodic"
	VerifyShiftEnd    = "shift_end"
	VerifyEndReminder = "end_reminder"
)

// ScheduledVerification results
const (
	ResultPrompted  = "prompted"
	ResultSkipped   = "skipped"
	ResultCancelled = "cancelled"
)

// ScheduledVerification is a future-dated one-shot location re-check or
// check-out reminder. Once executed or cancelled it is immutable.
type ScheduledVerification struct {
	ID                 string
	EmployeeID         string
	AttendanceRecordID string
	Kind               string
	ScheduledFor       time.Time
	Executed           bool
	Result             string
}

// Employee represents a staff member in the system
type Employee struct {
	ID             string
	TelegramChatID int64
	Name           string
	EmployeeCode   string
	Department     string
	ManagerID      string
	GroupID        string
	IsActive       bool
}

// Group is a ward/department chat whose alerts are owned by one manager
type Group struct {
	ID        string
	Name      string
	ManagerID string
}

// Supervisor is a backup message target for one primary contact.
// A supervisor that has failed five times in a row is skipped until a
// delivery success or a manual reset clears the counter.
type Supervisor struct {
	ID                  string
	OwnerID             string
	DisplayName         string
	ChannelAddress      string // telegram chat id, unique per owner
	Priority            int    // ascending = tried first
	IsActive            bool
	ConsecutiveFailures int
	LastUsedAt          *time.Time
}

// Delivery sender kinds
const (
	SenderPrimary    = "primary"
	SenderSupervisor = "supervisor"
)

// DeliveryAttemptLog is one append-only row per delivery attempt
type DeliveryAttemptLog struct {
	ID            string
	MessageID     string
	SenderKind    string
	SenderID      string
	Success       bool
	Error         string
	AttemptNumber int
	Timestamp     time.Time
}
