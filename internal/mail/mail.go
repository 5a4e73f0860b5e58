// Package mail decides which transactional emails an order triggers and
// hands them to a Sender.
package mail

import (
	"context"
	"log/slog"
	"time"

	"pricewaiter-bridge/internal/events"
	"pricewaiter-bridge/internal/model"
)

// Email ids match the host store's email classes.
const (
	NewOrder                = "new_order"
	CancelledOrder          = "cancelled_order"
	CustomerInvoice         = "customer_invoice"
	CustomerOnHoldOrder     = "customer_on_hold_order"
	CustomerProcessingOrder = "customer_processing_order"
	CustomerCompletedOrder  = "customer_completed_order"
)

var triggers = map[model.OrderStatus][]string{
	model.StatusPending:    {CustomerInvoice},
	model.StatusOnHold:     {NewOrder, CustomerOnHoldOrder},
	model.StatusProcessing: {NewOrder, CustomerProcessingOrder},
	model.StatusCompleted:  {CustomerCompletedOrder},
	model.StatusCancelled:  {CancelledOrder},
}

// Message is one queued email.
type Message struct {
	Email     string
	OrderID   string
	Recipient string
	Status    model.OrderStatus
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Cycle is the email state of one request. Emails disabled on a cycle stay
// disabled for that request only.
type Cycle struct {
	sender   Sender
	logger   *slog.Logger
	disabled map[string]bool
}

// NewCycle opens a cycle for one request.
func NewCycle(sender Sender, logger *slog.Logger) *Cycle {
	return &Cycle{sender: sender, logger: logger, disabled: map[string]bool{}}
}

// Disable turns off the given emails for this cycle.
func (c *Cycle) Disable(emails ...string) {
	for _, e := range emails {
		c.disabled[e] = true
	}
}

func (c *Cycle) Enabled(email string) bool {
	return !c.disabled[email]
}

// Dispatch sends every enabled email the order's status triggers and
// returns the ids that were sent. Send failures are logged and skipped.
func (c *Cycle) Dispatch(ctx context.Context, o *model.Order) []string {
	var sent []string
	for _, email := range triggers[o.Status] {
		if !c.Enabled(email) {
			continue
		}
		msg := Message{Email: email, OrderID: o.ID, Status: o.Status}
		if email != NewOrder && email != CancelledOrder {
			msg.Recipient = o.Billing.Email
		}
		if err := c.sender.Send(ctx, msg); err != nil {
			c.logger.Error("send email failed",
				slog.String("email", email),
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent = append(sent, email)
	}
	return sent
}

// EventSender queues emails as events for the mail worker.
type EventSender struct {
	Publisher events.Publisher
	Now       func() time.Time
}

func (s EventSender) Send(ctx context.Context, m Message) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Publisher.PublishEmail(ctx, events.EmailEvent{
		Type:       events.TypeEmailQueued,
		Email:      m.Email,
		OrderID:    m.OrderID,
		Recipient:  m.Recipient,
		Status:     string(m.Status),
		OccurredAt: now(),
	})
}

var _ Sender = EventSender{}
