package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"med-shift-bot/internal/models"
	"med-shift-bot/internal/repository"
)

const dateLayout = "2006-01-02"

// Caller-visible attendance outcomes
var (
	ErrNoShiftToday     = errors.New("no shift scheduled today")
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	ErrNoOpenCheckIn    = errors.New("no open check-in today")
)

// VerificationPlanner is the scheduling capability the ledger depends on;
// VerificationScheduler is the production implementation.
type VerificationPlanner interface {
	ArmForShift(ctx context.Context, attendanceRecordID, employeeID string, shiftEnd, now time.Time) error
	CancelForRecord(ctx context.Context, attendanceRecordID string) error
}

// CheckInResult is returned to the employee immediately so they learn their
// status and range without waiting on any notification outcome
type CheckInResult struct {
	Status         string
	WithinRange    bool
	DistanceMeters float64
	FacilityName   string
}

// CheckOutResult reports the closed record's status and captured overtime
type CheckOutResult struct {
	Status          string
	OvertimeMinutes int
}

// PingResult reports an ad-hoc location update's range classification
type PingResult struct {
	WithinRange    bool
	DistanceMeters float64
}

// AttendanceLedger owns the AttendanceRecord lifecycle: check-in, check-out,
// overtime capture and the side effects (pings, verification arming, alerts)
type AttendanceLedger struct {
	shifts    repository.ShiftStore
	records   repository.AttendanceStore
	pings     repository.PingStore
	employees repository.EmployeeStore
	proximity *ProximityEvaluator
	planner   VerificationPlanner
	notifier  Notifier
	clock     repository.Clock

	// receives ward notices for employees with no group chat; nil disables
	// the fallback
	adminNotify func(text string)

	toleranceMinutes   int
	maxAllowedDistance float64

	// serializes check-in/check-out within this process; the store's
	// ClaimCheckIn settles cross-process races
	mu sync.Mutex
}

// NewAttendanceLedger creates a new attendance ledger
func NewAttendanceLedger(
	shifts repository.ShiftStore,
	records repository.AttendanceStore,
	pings repository.PingStore,
	employees repository.EmployeeStore,
	proximity *ProximityEvaluator,
	planner VerificationPlanner,
	notifier Notifier,
	adminNotify func(text string),
	clock repository.Clock,
	toleranceMinutes int,
	maxAllowedDistanceMeters float64,
) *AttendanceLedger {
	return &AttendanceLedger{
		shifts:             shifts,
		records:            records,
		pings:              pings,
		employees:          employees,
		proximity:          proximity,
		planner:            planner,
		notifier:           notifier,
		adminNotify:        adminNotify,
		clock:              clock,
		toleranceMinutes:   toleranceMinutes,
		maxAllowedDistance: maxAllowedDistanceMeters,
	}
}

// CheckIn records the employee's arrival. Being out of range never blocks
// the check-in; it only raises a manager alert. Attendance facts are
// recorded independently of whether any notification succeeds.
func (l *AttendanceLedger) CheckIn(ctx context.Context, employeeID string, coord models.Coordinate) (*CheckInResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	date := now.Format(dateLayout)

	shift, err := l.shifts.FindShift(ctx, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to look up shift: %w", err)
	}
	rec, err := l.records.FindForDate(ctx, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to look up attendance: %w", err)
	}
	if shift == nil && rec == nil {
		return nil, ErrNoShiftToday
	}
	if rec != nil && rec.CheckInTime != nil {
		return nil, ErrAlreadyCheckedIn
	}

	if rec == nil {
		rec = &models.AttendanceRecord{
			EmployeeID: employeeID,
			ShiftID:    shift.ID,
			Date:       date,
			Status:     models.StatusPending,
		}
		if err := l.records.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to create attendance record: %w", err)
		}
	}

	eval, err := l.proximity.Evaluate(ctx, coord, "")
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate location: %w", err)
	}

	status := l.arrivalStatus(now, shift)

	claimed, err := l.records.ClaimCheckIn(ctx, rec.ID, now, coord, status)
	if err != nil {
		return nil, fmt.Errorf("failed to record check-in: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyCheckedIn
	}

	log.Printf("✅ Employee %s checked in at %s (status: %s, distance: %.0fm)",
		employeeID, now.Format("15:04:05"), status, eval.DistanceMeters)

	l.appendPing(ctx, employeeID, coord, models.PingCheckIn, &eval.DistanceMeters, rec.ID)

	if shift != nil {
		if shiftEnd, ok := wallClockOn(now, shift.ExpectedEnd); ok {
			if err := l.planner.ArmForShift(ctx, rec.ID, employeeID, shiftEnd, now); err != nil {
				log.Printf("⚠️ Failed to arm verifications for record %s: %v", rec.ID, err)
			}
		}
	}

	l.announceCheckIn(ctx, employeeID, now, status, eval)

	return &CheckInResult{
		Status:         status,
		WithinRange:    eval.Within,
		DistanceMeters: eval.DistanceMeters,
		FacilityName:   facilityName(eval.Facility),
	}, nil
}

// CheckOut closes today's open record, captures requested overtime past the
// expected shift end and cancels the record's pending verifications.
func (l *AttendanceLedger) CheckOut(ctx context.Context, employeeID string, coord models.Coordinate, overtimeRequested bool, overtimeReason string) (*CheckOutResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	date := now.Format(dateLayout)

	rec, err := l.records.FindForDate(ctx, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to look up attendance: %w", err)
	}
	if rec == nil || !rec.Open() {
		return nil, ErrNoOpenCheckIn
	}

	overtime := 0
	if overtimeRequested {
		shift, err := l.shifts.FindShift(ctx, employeeID, date)
		if err != nil {
			return nil, fmt.Errorf("failed to look up shift: %w", err)
		}
		if shift != nil {
			if end, ok := wallClockOn(now, shift.ExpectedEnd); ok && now.After(end) {
				overtime = int(now.Sub(end).Minutes())
			}
		}
	}

	if err := l.records.SetCheckOut(ctx, rec.ID, now, coord, overtime, overtimeReason); err != nil {
		return nil, fmt.Errorf("failed to record check-out: %w", err)
	}

	log.Printf("✅ Employee %s checked out at %s (overtime: %d min)",
		employeeID, now.Format("15:04:05"), overtime)

	// the audit ping carries no distance when evaluation fails; a zero would
	// read as "at the facility"
	var distance *float64
	if eval, err := l.proximity.Evaluate(ctx, coord, ""); err != nil {
		log.Printf("⚠️ Check-out location evaluation failed: %v", err)
	} else {
		distance = &eval.DistanceMeters
	}
	l.appendPing(ctx, employeeID, coord, models.PingCheckOut, distance, rec.ID)

	if err := l.planner.CancelForRecord(ctx, rec.ID); err != nil {
		log.Printf("⚠️ Failed to cancel verifications for record %s: %v", rec.ID, err)
	}

	l.announceCheckOut(ctx, employeeID, now, overtime)

	return &CheckOutResult{Status: rec.Status, OvertimeMinutes: overtime}, nil
}

// RecordManualPing handles an ad-hoc "update my location" action outside of
// check-in/check-out. Always appends a ping; alerts the manager when the
// distance exceeds the allowed maximum.
func (l *AttendanceLedger) RecordManualPing(ctx context.Context, employeeID string, coord models.Coordinate, kind string) (*PingResult, error) {
	if kind != models.PingPeriodic {
		kind = models.PingManual
	}
	now := l.clock.Now()

	eval, err := l.proximity.Evaluate(ctx, coord, "")
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate location: %w", err)
	}

	recordID := ""
	if rec, err := l.records.FindForDate(ctx, employeeID, now.Format(dateLayout)); err == nil && rec != nil {
		recordID = rec.ID
	}
	l.appendPing(ctx, employeeID, coord, kind, &eval.DistanceMeters, recordID)

	if eval.Facility != nil && eval.DistanceMeters > l.maxAllowedDistance {
		l.alertManagerOutOfRange(ctx, employeeID, eval)
	}

	return &PingResult{WithinRange: eval.Within, DistanceMeters: eval.DistanceMeters}, nil
}

func (l *AttendanceLedger) arrivalStatus(now time.Time, shift *models.Shift) string {
	if shift == nil {
		return models.StatusPresent
	}
	start, ok := wallClockOn(now, shift.ExpectedStart)
	if !ok {
		// unparseable shift time defaults to present
		return models.StatusPresent
	}
	threshold := start.Add(time.Duration(l.toleranceMinutes) * time.Minute)
	if now.After(threshold) {
		return models.StatusLate
	}
	return models.StatusPresent
}

func (l *AttendanceLedger) appendPing(ctx context.Context, employeeID string, coord models.Coordinate, kind string, distance *float64, recordID string) {
	ping := &models.LocationPing{
		EmployeeID:         employeeID,
		Coord:              coord,
		Kind:               kind,
		DistanceMeters:     distance,
		AttendanceRecordID: recordID,
		Timestamp:          l.clock.Now(),
	}
	if err := l.pings.Create(ctx, ping); err != nil {
		log.Printf("⚠️ Failed to save %s ping for %s: %v", kind, employeeID, err)
	}
}

func (l *AttendanceLedger) announceCheckIn(ctx context.Context, employeeID string, now time.Time, status string, eval RangeResult) {
	emp, err := l.employees.GetByID(ctx, employeeID)
	if err != nil || emp == nil {
		log.Printf("⚠️ Cannot resolve employee %s for check-in notice: %v", employeeID, err)
		return
	}

	statusText := "เข้างานตรงเวลา ✅"
	if status == models.StatusLate {
		statusText = "เข้าสาย ⚠️"
	}
	text := fmt.Sprintf(
		"🏥 *บันทึกเวลาเข้างาน*\n🕐 เวลา: `%s`\n📍 สถานที่: `%s`\n⏰ สถานะ: *%s*",
		now.Format("15:04:05"), facilityName(eval.Facility), statusText,
	)
	switch {
	case emp.GroupID != "":
		if _, err := l.notifier.SendToGroup(ctx, emp.GroupID, uuid.NewString(), text, employeeID); err != nil {
			log.Printf("⚠️ Group check-in notice for %s failed: %v", employeeID, err)
		}
	case l.adminNotify != nil:
		// no ward group configured: the admin chat gets the notice
		l.adminNotify(fmt.Sprintf("👤 %s\n%s", emp.Name, text))
	}

	if eval.Facility != nil && eval.DistanceMeters > l.maxAllowedDistance {
		l.alertManagerOutOfRange(ctx, employeeID, eval)
	}
}

func (l *AttendanceLedger) announceCheckOut(ctx context.Context, employeeID string, now time.Time, overtime int) {
	emp, err := l.employees.GetByID(ctx, employeeID)
	if err != nil || emp == nil {
		return
	}
	text := fmt.Sprintf("🏥 *บันทึกเวลาออกงาน*\n🕐 เวลา: `%s`", now.Format("15:04:05"))
	if overtime > 0 {
		text += fmt.Sprintf("\n⏱ ทำงานล่วงเวลา %d นาที", overtime)
	}
	switch {
	case emp.GroupID != "":
		if _, err := l.notifier.SendToGroup(ctx, emp.GroupID, uuid.NewString(), text, employeeID); err != nil {
			log.Printf("⚠️ Group check-out notice for %s failed: %v", employeeID, err)
		}
	case l.adminNotify != nil:
		l.adminNotify(fmt.Sprintf("👤 %s\n%s", emp.Name, text))
	}
}

func (l *AttendanceLedger) alertManagerOutOfRange(ctx context.Context, employeeID string, eval RangeResult) {
	emp, err := l.employees.GetByID(ctx, employeeID)
	if err != nil || emp == nil || emp.ManagerID == "" {
		log.Printf("⚠️ Cannot resolve manager for out-of-range alert (employee %s)", employeeID)
		return
	}
	text := fmt.Sprintf(
		"🚨 *พนักงานอยู่นอกพื้นที่*\n👤 ชื่อ: `%s`\n📏 ระยะห่าง: `%.0f ม.` จาก `%s`",
		emp.Name, eval.DistanceMeters, facilityName(eval.Facility),
	)
	if _, err := l.notifier.SendWithFallback(ctx, emp.ManagerID, uuid.NewString(), text); err != nil {
		log.Printf("⚠️ Out-of-range alert for %s failed: %v", employeeID, err)
	}
}

func facilityName(f *models.Facility) string {
	if f == nil {
		return ""
	}
	return f.Name
}

// wallClockOn projects a "15:04:05" wall-clock string onto the given day.
func wallClockOn(day time.Time, clock string) (time.Time, bool) {
	parsed, err := time.Parse("15:04:05", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(
		day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), parsed.Second(), 0,
		day.Location(),
	), true
}
