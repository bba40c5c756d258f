package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"med-shift-bot/internal/models"
	"med-shift-bot/internal/repository"
)

// Notifier is the outbound-message capability the schedulers and the ledger
// depend on; DeliveryRouter is the production implementation.
type Notifier interface {
	SendWithFallback(ctx context.Context, ownerID, messageID, text string) (DeliveryResult, error)
	SendToGroup(ctx context.Context, groupID, messageID, text, mentionEmployeeID string) (DeliveryResult, error)
}

// endReminderCount bounds check-out chasing: a shift-end prompt pre-schedules
// at most this many reminders and reminders never schedule more.
const endReminderCount = 4

// VerificationScheduler keeps an open shift's location re-checks and
// check-out reminders as pending rows, executed by periodic sweeps. All
// waiting is data, so pending work survives process restarts.
type VerificationScheduler struct {
	verifications repository.VerificationStore
	records       repository.AttendanceStore
	notifier      Notifier

	periodicInterval time.Duration
	reminderInterval time.Duration

	// serializes sweeps within this process; cross-process races are
	// settled by the store's conditional MarkExecuted
	sweepMu sync.Mutex
}

// NewVerificationScheduler creates a new verification scheduler
func NewVerificationScheduler(
	verifications repository.VerificationStore,
	records repository.AttendanceStore,
	notifier Notifier,
	periodicIntervalMinutes, reminderIntervalMinutes int,
) *VerificationScheduler {
	return &VerificationScheduler{
		verifications:    verifications,
		records:          records,
		notifier:         notifier,
		periodicInterval: time.Duration(periodicIntervalMinutes) * time.Minute,
		reminderInterval: time.Duration(reminderIntervalMinutes) * time.Minute,
	}
}

// ArmForShift schedules periodic location checks for the remainder of the
// shift plus one shift-end prompt. A check-in after the nominal shift end
// still gets the shift-end item, immediately due on the next sweep.
func (s *VerificationScheduler) ArmForShift(ctx context.Context, attendanceRecordID, employeeID string, shiftEnd, now time.Time) error {
	periodic := 0
	for at := now.Add(s.periodicInterval); !at.After(shiftEnd); at = at.Add(s.periodicInterval) {
		v := &models.ScheduledVerification{
			EmployeeID:         employeeID,
			AttendanceRecordID: attendanceRecordID,
			Kind:               models.VerifyPeriodic,
			ScheduledFor:       at,
		}
		if err := s.verifications.Create(ctx, v); err != nil {
			return err
		}
		periodic++
	}

	end := &models.ScheduledVerification{
		EmployeeID:         employeeID,
		AttendanceRecordID: attendanceRecordID,
		Kind:               models.VerifyShiftEnd,
		ScheduledFor:       shiftEnd,
	}
	if err := s.verifications.Create(ctx, end); err != nil {
		return err
	}

	log.Printf("⏰ Armed record %s: %d periodic checks + shift-end prompt at %s",
		attendanceRecordID, periodic, shiftEnd.Format("15:04"))
	return nil
}

// RunDue executes every pending verification whose time has arrived and
// returns the number of items processed. Invoked by the sweep ticker.
// Each item is claimed (marked executed) before its send so overlapping
// sweeps run an item at most once; one item's failure never stops the sweep.
func (s *VerificationScheduler) RunDue(ctx context.Context, now time.Time) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	due, err := s.verifications.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		item := &due[i]
		result, ok := s.outcomeFor(ctx, item)
		if !ok {
			// record lookup failed; leave the item pending for the next sweep
			continue
		}
		claimed, err := s.verifications.MarkExecuted(ctx, item.ID, result)
		if err != nil {
			log.Printf("⚠️ Sweep: failed to claim verification %s: %v", item.ID, err)
			continue
		}
		if !claimed {
			// another sweep won this item
			continue
		}
		if result != models.ResultPrompted {
			continue
		}
		processed++

		switch item.Kind {
		case models.VerifyPeriodic:
			s.promptLocation(ctx, item)
		case models.VerifyShiftEnd:
			s.promptShiftEnd(ctx, item, now)
		case models.VerifyEndReminder:
			s.promptEndReminder(ctx, item)
		}
	}
	return processed, nil
}

// outcomeFor decides the result a due item is claimed with. A reminder whose
// record already has a check-out, and any item of an unrecognized kind, is
// recorded as skipped so the stored result never claims a send that did not
// happen. Returns false when the decision needs a record read that failed.
func (s *VerificationScheduler) outcomeFor(ctx context.Context, item *models.ScheduledVerification) (string, bool) {
	switch item.Kind {
	case models.VerifyPeriodic, models.VerifyShiftEnd:
		return models.ResultPrompted, true
	case models.VerifyEndReminder:
		rec, err := s.records.Get(ctx, item.AttendanceRecordID)
		if err != nil {
			log.Printf("⚠️ Sweep: cannot load record %s: %v", item.AttendanceRecordID, err)
			return "", false
		}
		if rec == nil || rec.CheckOutTime != nil {
			return models.ResultSkipped, true
		}
		return models.ResultPrompted, true
	default:
		log.Printf("⚠️ Sweep: verification %s has unknown kind %q", item.ID, item.Kind)
		return models.ResultSkipped, true
	}
}

// CancelForRecord cancels every still-pending verification for the record;
// called on check-out. Executed items are history and stay untouched.
func (s *VerificationScheduler) CancelForRecord(ctx context.Context, attendanceRecordID string) error {
	n, err := s.verifications.CancelForRecord(ctx, attendanceRecordID)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("🧹 Cancelled %d pending verifications for record %s", n, attendanceRecordID)
	}
	return nil
}

func (s *VerificationScheduler) promptLocation(ctx context.Context, item *models.ScheduledVerification) {
	text := "📍 *ยืนยันตำแหน่ง*\n" +
		"กรุณาแชร์ตำแหน่งปัจจุบันของคุณ เพื่อยืนยันว่ายังอยู่ในพื้นที่ปฏิบัติงาน"
	if _, err := s.notifier.SendWithFallback(ctx, item.EmployeeID, uuid.NewString(), text); err != nil {
		log.Printf("⚠️ Sweep: location prompt for %s failed: %v", item.EmployeeID, err)
	}
}

func (s *VerificationScheduler) promptShiftEnd(ctx context.Context, item *models.ScheduledVerification, now time.Time) {
	text := "🕐 *ถึงเวลาเลิกงานแล้ว*\n" +
		"คุณกำลังจะออกงานหรือไม่? อย่าลืมบันทึกเวลาออกงาน"
	if _, err := s.notifier.SendWithFallback(ctx, item.EmployeeID, uuid.NewString(), text); err != nil {
		log.Printf("⚠️ Sweep: shift-end prompt for %s failed: %v", item.EmployeeID, err)
	}

	rec, err := s.records.Get(ctx, item.AttendanceRecordID)
	if err != nil {
		log.Printf("⚠️ Sweep: cannot load record %s: %v", item.AttendanceRecordID, err)
		return
	}
	if rec == nil || rec.CheckOutTime != nil {
		return
	}

	// Still no check-out: pre-schedule the whole bounded reminder window
	// now instead of chaining reminders off each other.
	for i := 1; i <= endReminderCount; i++ {
		reminder := &models.ScheduledVerification{
			EmployeeID:         item.EmployeeID,
			AttendanceRecordID: item.AttendanceRecordID,
			Kind:               models.VerifyEndReminder,
			ScheduledFor:       now.Add(time.Duration(i) * s.reminderInterval),
		}
		if err := s.verifications.Create(ctx, reminder); err != nil {
			log.Printf("⚠️ Sweep: failed to schedule end reminder #%d for record %s: %v",
				i, item.AttendanceRecordID, err)
		}
	}
}

func (s *VerificationScheduler) promptEndReminder(ctx context.Context, item *models.ScheduledVerification) {
	text := "🔔 *แจ้งเตือนอีกครั้ง*\n" +
		"ยังไม่พบการบันทึกเวลาออกงานของคุณ กรุณาบันทึกเวลาออกงานด้วย"
	if _, err := s.notifier.SendWithFallback(ctx, item.EmployeeID, uuid.NewString(), text); err != nil {
		log.Printf("⚠️ Sweep: end reminder for %s failed: %v", item.EmployeeID, err)
	}
}
