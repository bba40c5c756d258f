package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"med-shift-bot/internal/models"
	"med-shift-bot/internal/repository"
)

// ErrNoSenderAvailable is returned when neither a primary channel nor any
// eligible supervisor exists for the target contact.
var ErrNoSenderAvailable = errors.New("no sender available")

// maxConsecutiveFailures is the circuit-breaker threshold: a supervisor at
// this count is skipped until a success or manual reset clears the counter.
// The counter is never reset by the passage of time alone.
const maxConsecutiveFailures = 5

// MessageSender delivers one message to one channel address, bounded in
// time, with no internal retry. Retry and fallback live in DeliveryRouter.
type MessageSender interface {
	Send(channelAddress, text string) error
}

// DeliveryResult reports how an escalating delivery ended
type DeliveryResult struct {
	Success    bool
	SentBy     string // models.SenderPrimary or models.SenderSupervisor
	SenderName string
	Attempts   int
}

// DeliveryRouter walks a prioritized, health-tracked chain of senders so a
// single dead channel cannot silently drop an alert
type DeliveryRouter struct {
	employees   repository.EmployeeStore
	groups      repository.GroupStore
	supervisors repository.SupervisorStore
	logs        repository.DeliveryLogStore
	sender      MessageSender
	clock       repository.Clock
}

// NewDeliveryRouter creates a new delivery router
func NewDeliveryRouter(
	employees repository.EmployeeStore,
	groups repository.GroupStore,
	supervisors repository.SupervisorStore,
	logs repository.DeliveryLogStore,
	sender MessageSender,
	clock repository.Clock,
) *DeliveryRouter {
	return &DeliveryRouter{
		employees:   employees,
		groups:      groups,
		supervisors: supervisors,
		logs:        logs,
		sender:      sender,
		clock:       clock,
	}
}

// SendWithFallback tries the owner's primary channel once, then each active
// supervisor below the failure threshold in priority order. Attempts within
// one call are strictly sequential. messageID is the caller's stable id for
// the logical event so retried deliveries stay attributable to one message.
func (d *DeliveryRouter) SendWithFallback(ctx context.Context, ownerID, messageID, text string) (DeliveryResult, error) {
	attempts := 0

	owner, err := d.employees.GetByID(ctx, ownerID)
	if err != nil {
		log.Printf("⚠️ Delivery %s: cannot resolve owner %s: %v", messageID, ownerID, err)
	}

	if owner != nil && owner.TelegramChatID != 0 {
		attempts++
		addr := fmt.Sprintf("%d", owner.TelegramChatID)
		sendErr := d.sender.Send(addr, text)
		d.logAttempt(ctx, messageID, models.SenderPrimary, owner.ID, attempts, sendErr)
		if sendErr == nil {
			return DeliveryResult{Success: true, SentBy: models.SenderPrimary, SenderName: owner.Name, Attempts: attempts}, nil
		}
		log.Printf("⚠️ Delivery %s: primary channel of %s failed: %v", messageID, ownerID, sendErr)
	}

	candidates, err := d.supervisors.ListEligible(ctx, ownerID, maxConsecutiveFailures)
	if err != nil {
		return DeliveryResult{Attempts: attempts}, fmt.Errorf("failed to list supervisors: %w", err)
	}
	if len(candidates) == 0 {
		return DeliveryResult{Attempts: attempts}, ErrNoSenderAvailable
	}

	for _, sup := range candidates {
		attempts++
		sendErr := d.sender.Send(sup.ChannelAddress, text)
		d.logAttempt(ctx, messageID, models.SenderSupervisor, sup.ID, attempts, sendErr)
		if sendErr == nil {
			if err := d.supervisors.ResetFailures(ctx, sup.ID, d.clock.Now()); err != nil {
				log.Printf("⚠️ Delivery %s: failed to reset failures for supervisor %s: %v", messageID, sup.ID, err)
			}
			return DeliveryResult{Success: true, SentBy: models.SenderSupervisor, SenderName: sup.DisplayName, Attempts: attempts}, nil
		}
		log.Printf("⚠️ Delivery %s: supervisor %s (%s) failed: %v", messageID, sup.ID, sup.DisplayName, sendErr)
		if err := d.supervisors.IncrementFailures(ctx, sup.ID); err != nil {
			log.Printf("⚠️ Delivery %s: failed to increment failures for supervisor %s: %v", messageID, sup.ID, err)
		}
	}

	return DeliveryResult{Attempts: attempts}, nil
}

// SendToGroup resolves the group's owning manager and escalates through the
// manager's chain. mentionEmployeeID, when set, prefixes the message with
// the mentioned employee's name.
func (d *DeliveryRouter) SendToGroup(ctx context.Context, groupID, messageID, text, mentionEmployeeID string) (DeliveryResult, error) {
	group, err := d.groups.GetByID(ctx, groupID)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("failed to resolve group %s: %w", groupID, err)
	}

	if mentionEmployeeID != "" {
		if emp, err := d.employees.GetByID(ctx, mentionEmployeeID); err == nil && emp != nil {
			text = fmt.Sprintf("👤 %s\n%s", emp.Name, text)
		}
	}

	return d.SendWithFallback(ctx, group.ManagerID, messageID, text)
}

func (d *DeliveryRouter) logAttempt(ctx context.Context, messageID, senderKind, senderID string, attemptNumber int, sendErr error) {
	entry := &models.DeliveryAttemptLog{
		MessageID:     messageID,
		SenderKind:    senderKind,
		SenderID:      senderID,
		Success:       sendErr == nil,
		AttemptNumber: attemptNumber,
		Timestamp:     d.clock.Now(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := d.logs.Create(ctx, entry); err != nil {
		log.Printf("⚠️ Delivery %s: failed to log attempt #%d: %v", messageID, attemptNumber, err)
	}
}
