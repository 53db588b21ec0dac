package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/upi-payments/internal/core/events"
	"github.com/frahmantamala/upi-payments/internal/order"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// EventHandler turns payment submission events into customer notifications.
type EventHandler struct {
	notifier Notifier
	orders   OrderReader
	logger   *slog.Logger
}

func NewEventHandler(notifier Notifier, orders OrderReader, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		notifier: notifier,
		orders:   orders,
		logger:   logger,
	}
}

func (h *EventHandler) Register(bus *events.EventBus) {
	for _, eventType := range events.SubmissionEventTypes {
		bus.Subscribe(eventType, h.Handle)
	}
}

func (h *EventHandler) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentSubmissionEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T for %s", event, event.EventType())
	}

	amount := ""
	if h.orders != nil {
		o, err := h.orders.GetOrder(ctx, e.OrderID)
		if err != nil {
			h.logger.WarnContext(ctx, "order lookup failed, notifying without amount",
				"order_id", e.OrderID,
				"error", err)
		} else {
			amount = o.FormattedTotal()
		}
	}

	n := Build(e, amount)
	if n == nil {
		return nil
	}
	return h.notifier.Notify(ctx, n)
}

// Build renders the customer facing notification for e. amount may be empty.
func Build(e *events.PaymentSubmissionEvent, amount string) *Notification {
	orderID := e.OrderID
	n := &Notification{
		UserID:  e.CustomerID,
		OrderID: &orderID,
	}

	forOrder := "order " + e.OrderID
	if amount != "" {
		forOrder = fmt.Sprintf("order %s (%s)", e.OrderID, amount)
	}

	switch e.EventType() {
	case events.EventTypePaymentSubmitted:
		n.Type = TypePaymentSubmitted
		n.Title = "Payment proof received"
		n.Message = fmt.Sprintf("We received your payment screenshot for %s. Attempt %d of %d. We will verify it shortly.",
			forOrder, e.AttemptNumber, e.MaxAttempts)
	case events.EventTypePaymentVerified:
		n.Type = TypePaymentVerified
		n.Title = "Payment verified"
		n.Message = fmt.Sprintf("Your payment for %s has been verified and your order is confirmed.", forOrder)
	case events.EventTypePaymentRejected:
		n.Type = TypePaymentRejected
		n.Title = "Payment rejected"
		n.Message = fmt.Sprintf("Your payment for %s could not be verified.", forOrder)
		if e.AdminNotes != nil && *e.AdminNotes != "" {
			n.Message += " Reason: " + *e.AdminNotes + "."
		}
		n.Message += retryHint(e)
	case events.EventTypePaymentExpired:
		n.Type = TypePaymentExpired
		n.Title = "Payment review expired"
		n.Message = fmt.Sprintf("The payment screenshot for %s was not reviewed in time.", forOrder) + retryHint(e)
	default:
		return nil
	}
	return n
}

func retryHint(e *events.PaymentSubmissionEvent) string {
	remaining := e.AttemptsRemaining()
	if remaining == 0 {
		return " No attempts remain, please contact support."
	}
	return fmt.Sprintf(" You can upload a new screenshot (%d attempt(s) left).", remaining)
}
