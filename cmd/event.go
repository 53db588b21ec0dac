package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/frahmantamala/upi-payments/internal/core/events"
	"github.com/frahmantamala/upi-payments/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the payment submission events without touching the database`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a sample payment event",
	Long:  fmt.Sprintf("Publish a sample payment submission event to an in-process bus. Known types: %v", events.SubmissionEventTypes),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var sampleStatus = map[string]string{
	events.EventTypePaymentSubmitted: "pending_verification",
	events.EventTypePaymentVerified:  "verified",
	events.EventTypePaymentRejected:  "rejected",
	events.EventTypePaymentExpired:   "expired",
}

var (
	eventOrderID string
	eventNotes   string
)

func publishTestEvent(eventType string) error {
	if !slices.Contains(events.SubmissionEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q, expected one of %v", eventType, events.SubmissionEventTypes)
	}

	lg := logger.LoggerWrapper()
	eventBus := events.NewEventBus(lg)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	var notes *string
	if eventNotes != "" {
		notes = &eventNotes
	}
	event := events.NewPaymentSubmissionEvent(eventType, uuid.NewString(), eventOrderID, 0, sampleStatus[eventType], 1, 3, nil, notes)

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := eventBus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	if err := eventBus.Wait(ctx); err != nil {
		return fmt.Errorf("wait for handlers: %w", err)
	}

	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventOrderID, "order", "ORD-1001", "order id carried by the event")
	publishEventCmd.Flags().StringVar(&eventNotes, "notes", "", "admin notes carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
