package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"med-shift-bot/internal/models"
)

func newDeliveryFixture(failing map[string]bool, sups ...*models.Supervisor) (*DeliveryRouter, *fakeSender, *fakeSupervisorStore, *fakeDeliveryLogStore) {
	employees := &fakeEmployeeStore{employees: map[string]*models.Employee{
		"mgr1": {ID: "mgr1", Name: "Dr. Somchai", TelegramChatID: 111},
		"mute": {ID: "mute", Name: "No Channel"}, // no connected chat
	}}
	groups := &fakeGroupStore{groups: map[string]*models.Group{
		"ward7": {ID: "ward7", Name: "Ward 7", ManagerID: "mgr1"},
	}}
	supStore := &fakeSupervisorStore{sups: sups}
	logs := &fakeDeliveryLogStore{}
	sender := &fakeSender{failing: failing}
	clock := &fakeClock{now: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)}
	router := NewDeliveryRouter(employees, groups, supStore, logs, sender, clock)
	return router, sender, supStore, logs
}

func TestSendWithFallbackPrimarySuccess(t *testing.T) {
	router, sender, _, logs := newDeliveryFixture(nil)

	res, err := router.SendWithFallback(context.Background(), "mgr1", "msg1", "hello")
	if err != nil {
		t.Fatalf("SendWithFallback() error = %v", err)
	}
	if !res.Success || res.SentBy != models.SenderPrimary || res.Attempts != 1 {
		t.Errorf("result = %+v, want primary success in 1 attempt", res)
	}
	if len(sender.sent) != 1 || sender.sent[0].Address != "111" {
		t.Errorf("sent = %v, want single send to 111", sender.sent)
	}
	if len(logs.entries) != 1 || !logs.entries[0].Success || logs.entries[0].AttemptNumber != 1 {
		t.Errorf("logs = %+v, want one successful attempt #1", logs.entries)
	}
}

func TestSendWithFallbackOrdering(t *testing.T) {
	supA := &models.Supervisor{ID: "supA", OwnerID: "mgr1", DisplayName: "A", ChannelAddress: "201", Priority: 1, IsActive: true}
	supB := &models.Supervisor{ID: "supB", OwnerID: "mgr1", DisplayName: "B", ChannelAddress: "202", Priority: 2, IsActive: true}
	router, sender, supStore, logs := newDeliveryFixture(
		map[string]bool{"111": true, "201": true}, supA, supB)

	res, err := router.SendWithFallback(context.Background(), "mgr1", "msg2", "escalate me")
	if err != nil {
		t.Fatalf("SendWithFallback() error = %v", err)
	}
	if !res.Success || res.SentBy != models.SenderSupervisor || res.SenderName != "B" || res.Attempts != 3 {
		t.Errorf("result = %+v, want supervisor B success on attempt 3", res)
	}

	wantOrder := []string{"111", "201", "202"}
	if len(sender.sent) != len(wantOrder) {
		t.Fatalf("sent %d messages, want %d", len(sender.sent), len(wantOrder))
	}
	for i, addr := range wantOrder {
		if sender.sent[i].Address != addr {
			t.Errorf("send #%d went to %s, want %s", i+1, sender.sent[i].Address, addr)
		}
	}

	if got := supStore.get("supA").ConsecutiveFailures; got != 1 {
		t.Errorf("supA failures = %d, want 1", got)
	}
	b := supStore.get("supB")
	if b.ConsecutiveFailures != 0 || b.LastUsedAt == nil {
		t.Errorf("supB = %+v, want reset counter and stamped last-used", b)
	}

	// one log row per attempt, continuous numbering, same message id
	if len(logs.entries) != 3 {
		t.Fatalf("logged %d attempts, want 3", len(logs.entries))
	}
	for i, entry := range logs.entries {
		if entry.AttemptNumber != i+1 {
			t.Errorf("log #%d attempt number = %d", i, entry.AttemptNumber)
		}
		if entry.MessageID != "msg2" {
			t.Errorf("log #%d message id = %s, want msg2", i, entry.MessageID)
		}
	}
	if logs.entries[2].Success != true || logs.entries[0].Success || logs.entries[1].Success {
		t.Errorf("log successes = %+v, want only the third", logs.entries)
	}
}

func TestCircuitBreakerExcludesBrokenSupervisor(t *testing.T) {
	tripped := &models.Supervisor{ID: "supA", OwnerID: "mgr1", DisplayName: "A", ChannelAddress: "201", Priority: 1, IsActive: true, ConsecutiveFailures: 5}
	healthy := &models.Supervisor{ID: "supB", OwnerID: "mgr1", DisplayName: "B", ChannelAddress: "202", Priority: 2, IsActive: true}
	router, sender, _, _ := newDeliveryFixture(map[string]bool{"111": true}, tripped, healthy)

	res, err := router.SendWithFallback(context.Background(), "mgr1", "msg3", "ping")
	if err != nil {
		t.Fatalf("SendWithFallback() error = %v", err)
	}
	if !res.Success || res.SenderName != "B" || res.Attempts != 2 {
		t.Errorf("result = %+v, want B on attempt 2 with A excluded", res)
	}
	for _, m := range sender.sent {
		if m.Address == "201" {
			t.Errorf("tripped supervisor A was attempted")
		}
	}
}

func TestSendWithFallbackNoSenderAvailable(t *testing.T) {
	router, _, _, _ := newDeliveryFixture(nil)

	_, err := router.SendWithFallback(context.Background(), "mute", "msg4", "anyone?")
	if !errors.Is(err, ErrNoSenderAvailable) {
		t.Errorf("error = %v, want ErrNoSenderAvailable", err)
	}
}

func TestSendWithFallbackAllFail(t *testing.T) {
	supA := &models.Supervisor{ID: "supA", OwnerID: "mgr1", DisplayName: "A", ChannelAddress: "201", Priority: 1, IsActive: true}
	router, _, supStore, _ := newDeliveryFixture(map[string]bool{"111": true, "201": true}, supA)

	res, err := router.SendWithFallback(context.Background(), "mgr1", "msg5", "doomed")
	if err != nil {
		t.Fatalf("SendWithFallback() error = %v, want nil for an exhausted chain", err)
	}
	if res.Success || res.Attempts != 2 {
		t.Errorf("result = %+v, want failure after 2 attempts", res)
	}
	if got := supStore.get("supA").ConsecutiveFailures; got != 1 {
		t.Errorf("supA failures = %d, want 1", got)
	}
}

func TestSendToGroupResolvesManager(t *testing.T) {
	router, sender, _, _ := newDeliveryFixture(nil)

	res, err := router.SendToGroup(context.Background(), "ward7", "msg6", "shift note", "mute")
	if err != nil {
		t.Fatalf("SendToGroup() error = %v", err)
	}
	if !res.Success || res.SentBy != models.SenderPrimary {
		t.Errorf("result = %+v, want primary success via ward manager", res)
	}
	if len(sender.sent) != 1 || sender.sent[0].Address != "111" {
		t.Fatalf("sent = %v, want delivery to manager chat 111", sender.sent)
	}
	// mentioned employee's name is prefixed
	if want := "No Channel"; !strings.Contains(sender.sent[0].Text, want) {
		t.Errorf("text = %q, want mention of %q", sender.sent[0].Text, want)
	}
}
