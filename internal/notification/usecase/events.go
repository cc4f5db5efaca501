package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"notification-relay/internal/notification/domain"
	"notification-relay/pkg/queue"
)

// DoneEventLogger is an audit subscriber that logs every dispatch outcome
// published on the events exchange.
type DoneEventLogger struct {
	subscriber EventSubscriber
	exchange   string
	name       string
	log        zerolog.Logger
}

// NewDoneEventLogger creates an audit subscriber. An empty name defaults to "audit".
func NewDoneEventLogger(subscriber EventSubscriber, exchange, name string, log zerolog.Logger) *DoneEventLogger {
	if name == "" {
		name = "audit"
	}
	return &DoneEventLogger{
		subscriber: subscriber,
		exchange:   exchange,
		name:       name,
		log:        log.With().Str("component", "DoneEventLogger").Logger(),
	}
}

// Run blocks until ctx is done.
func (l *DoneEventLogger) Run(ctx context.Context) error {
	return l.subscriber.Subscribe(ctx, l.exchange, domain.DoneBindingKey, l.name, l.handle)
}

func (l *DoneEventLogger) handle(_ context.Context, d queue.Delivery) error {
	var event domain.DoneEvent
	if err := d.Decode(&event); err != nil {
		return fmt.Errorf("decode done event: %w", err)
	}

	entry := l.log.Info()
	if event.Status != domain.StatusSent {
		entry = l.log.Warn()
	}
	entry = entry.
		Str("routing_key", d.RoutingKey).
		Str("status", string(event.Status)).
		Uint("device_id", event.DeviceID)
	if event.NotificationID != nil {
		entry = entry.Uint("notification_id", *event.NotificationID)
	}
	if event.MessageID != nil {
		entry = entry.Str("message_id", *event.MessageID)
	}
	if event.FcmErrorCode != nil {
		entry = entry.Str("code", *event.FcmErrorCode)
	}
	if event.Identifier != nil {
		entry = entry.Str("identifier", *event.Identifier)
	}
	entry.Msg("Dispatch outcome")
	return nil
}
