package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"med-shift-bot/internal/models"
)

// In-memory store fakes shared by the service tests.

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeFacilityStore struct {
	facilities []models.Facility
	err        error
}

func (s *fakeFacilityStore) ListActive(ctx context.Context) ([]models.Facility, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Facility, 0, len(s.facilities))
	for _, f := range s.facilities {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out, nil
}

type fakeShiftStore struct {
	shifts []models.Shift
}

func (s *fakeShiftStore) FindShift(ctx context.Context, employeeID, date string) (*models.Shift, error) {
	for i := range s.shifts {
		if s.shifts[i].EmployeeID == employeeID && s.shifts[i].Date == date {
			sh := s.shifts[i]
			return &sh, nil
		}
	}
	return nil, nil
}

type fakeAttendanceStore struct {
	mu      sync.Mutex
	seq     int
	records map[string]*models.AttendanceRecord
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{records: make(map[string]*models.AttendanceRecord)}
}

func (s *fakeAttendanceStore) FindForDate(ctx context.Context, employeeID, date string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.EmployeeID == employeeID && r.Date == date {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeAttendanceStore) Get(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeAttendanceStore) Create(ctx context.Context, rec *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec.ID = fmt.Sprintf("rec%d", s.seq)
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *fakeAttendanceStore) ClaimCheckIn(ctx context.Context, id string, at time.Time, coord models.Coordinate, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, fmt.Errorf("record %s not found", id)
	}
	if r.CheckInTime != nil {
		return false, nil
	}
	t := at
	c := coord
	r.CheckInTime = &t
	r.CheckInCoord = &c
	r.Status = status
	return true, nil
}

func (s *fakeAttendanceStore) SetCheckOut(ctx context.Context, id string, at time.Time, coord models.Coordinate, overtimeMinutes int, overtimeReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	t := at
	c := coord
	r.CheckOutTime = &t
	r.CheckOutCoord = &c
	r.OvertimeMinutes = overtimeMinutes
	r.OvertimeReason = overtimeReason
	return nil
}

type fakePingStore struct {
	mu    sync.Mutex
	pings []models.LocationPing
}

func (s *fakePingStore) Create(ctx context.Context, ping *models.LocationPing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ping.ID = fmt.Sprintf("ping%d", len(s.pings)+1)
	s.pings = append(s.pings, *ping)
	return nil
}

type fakeVerificationStore struct {
	mu    sync.Mutex
	seq   int
	items []*models.ScheduledVerification
}

func (s *fakeVerificationStore) Create(ctx context.Context, v *models.ScheduledVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	v.ID = fmt.Sprintf("ver%d", s.seq)
	cp := *v
	s.items = append(s.items, &cp)
	return nil
}

func (s *fakeVerificationStore) ListDue(ctx context.Context, now time.Time) ([]models.ScheduledVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledVerification
	for _, v := range s.items {
		if !v.Executed && v.Result == "" && !v.ScheduledFor.After(now) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeVerificationStore) MarkExecuted(ctx context.Context, id, result string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.items {
		if v.ID != id {
			continue
		}
		if v.Executed || v.Result != "" {
			return false, nil
		}
		v.Executed = true
		v.Result = result
		return true, nil
	}
	return false, fmt.Errorf("verification %s not found", id)
}

func (s *fakeVerificationStore) CancelForRecord(ctx context.Context, attendanceRecordID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.items {
		if v.AttendanceRecordID == attendanceRecordID && !v.Executed && v.Result == "" {
			v.Result = models.ResultCancelled
			n++
		}
	}
	return n, nil
}

func (s *fakeVerificationStore) byKind(kind string) []models.ScheduledVerification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledVerification
	for _, v := range s.items {
		if v.Kind == kind {
			out = append(out, *v)
		}
	}
	return out
}

type fakeSupervisorStore struct {
	mu   sync.Mutex
	sups []*models.Supervisor
}

func (s *fakeSupervisorStore) ListEligible(ctx context.Context, ownerID string, maxFailures int) ([]models.Supervisor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Supervisor
	for _, sup := range s.sups {
		if sup.OwnerID == ownerID && sup.IsActive && sup.ConsecutiveFailures < maxFailures {
			out = append(out, *sup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *fakeSupervisorStore) IncrementFailures(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.sups {
		if sup.ID == id {
			sup.ConsecutiveFailures++
			return nil
		}
	}
	return fmt.Errorf("supervisor %s not found", id)
}

func (s *fakeSupervisorStore) ResetFailures(ctx context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.sups {
		if sup.ID == id {
			sup.ConsecutiveFailures = 0
			t := usedAt
			sup.LastUsedAt = &t
			return nil
		}
	}
	return fmt.Errorf("supervisor %s not found", id)
}

func (s *fakeSupervisorStore) get(id string) *models.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.sups {
		if sup.ID == id {
			cp := *sup
			return &cp
		}
	}
	return nil
}

type fakeEmployeeStore struct {
	employees map[string]*models.Employee
}

func (s *fakeEmployeeStore) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	emp, ok := s.employees[id]
	if !ok {
		return nil, fmt.Errorf("employee %s not found", id)
	}
	cp := *emp
	return &cp, nil
}

type fakeGroupStore struct {
	groups map[string]*models.Group
}

func (s *fakeGroupStore) GetByID(ctx context.Context, id string) (*models.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s not found", id)
	}
	cp := *g
	return &cp, nil
}

type fakeDeliveryLogStore struct {
	mu      sync.Mutex
	entries []models.DeliveryAttemptLog
}

func (s *fakeDeliveryLogStore) Create(ctx context.Context, entry *models.DeliveryAttemptLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = fmt.Sprintf("log%d", len(s.entries)+1)
	s.entries = append(s.entries, *entry)
	return nil
}

type sentMessage struct {
	Address string
	Text    string
}

// fakeSender fails for addresses listed in failing, succeeds otherwise
type fakeSender struct {
	mu      sync.Mutex
	failing map[string]bool
	sent    []sentMessage
}

func (s *fakeSender) Send(channelAddress, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Address: channelAddress, Text: text})
	if s.failing[channelAddress] {
		return fmt.Errorf("send to %s failed", channelAddress)
	}
	return nil
}

type notifierCall struct {
	OwnerID string
	GroupID string
	Text    string
	Mention string
}

// recordingNotifier implements Notifier for ledger/scheduler tests
type recordingNotifier struct {
	mu       sync.Mutex
	personal []notifierCall
	group    []notifierCall
}

func (n *recordingNotifier) SendWithFallback(ctx context.Context, ownerID, messageID, text string) (DeliveryResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.personal = append(n.personal, notifierCall{OwnerID: ownerID, Text: text})
	return DeliveryResult{Success: true, SentBy: models.SenderPrimary, Attempts: 1}, nil
}

func (n *recordingNotifier) SendToGroup(ctx context.Context, groupID, messageID, text, mentionEmployeeID string) (DeliveryResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.group = append(n.group, notifierCall{GroupID: groupID, Text: text, Mention: mentionEmployeeID})
	return DeliveryResult{Success: true, SentBy: models.SenderPrimary, Attempts: 1}, nil
}

type armCall struct {
	RecordID   string
	EmployeeID string
	ShiftEnd   time.Time
	Now        time.Time
}

// fakePlanner records arm/cancel requests from the ledger
type fakePlanner struct {
	armed     []armCall
	cancelled []string
}

func (p *fakePlanner) ArmForShift(ctx context.Context, attendanceRecordID, employeeID string, shiftEnd, now time.Time) error {
	p.armed = append(p.armed, armCall{RecordID: attendanceRecordID, EmployeeID: employeeID, ShiftEnd: shiftEnd, Now: now})
	return nil
}

func (p *fakePlanner) CancelForRecord(ctx context.Context, attendanceRecordID string) error {
	p.cancelled = append(p.cancelled, attendanceRecordID)
	return nil
}
