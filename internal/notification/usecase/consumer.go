package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"notification-relay/internal/notification/domain"
	"notification-relay/internal/notification/repository"
	"notification-relay/pkg/fcm"
	"notification-relay/pkg/queue"
)

type ConsumerConfig struct {
	QueueName      string
	EventsExchange string
	JobTracking    bool
}

// Consumer drains the dispatch queue, delivers each message through the
// gateway and records the outcome.
type Consumer struct {
	queue         QueueConsumer
	events        Publisher
	gateway       Gateway
	devices       DeviceDirectory
	notifications repository.NotificationRepository
	jobs          repository.FcmJobRepository
	cfg           ConsumerConfig
	log           zerolog.Logger
	now           func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewConsumer creates a stopped consumer; call Start to begin draining the queue.
func NewConsumer(
	q QueueConsumer,
	events Publisher,
	gateway Gateway,
	devices DeviceDirectory,
	notifications repository.NotificationRepository,
	jobs repository.FcmJobRepository,
	cfg ConsumerConfig,
	log zerolog.Logger,
) *Consumer {
	return &Consumer{
		queue:         q,
		events:        events,
		gateway:       gateway,
		devices:       devices,
		notifications: notifications,
		jobs:          jobs,
		cfg:           cfg,
		log:           log.With().Str("component", "FCMConsumer").Logger(),
		now:           time.Now,
	}
}

// Start begins consuming in the background. Calling it while a previous
// consume loop is still alive is a no-op.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.log.Info().Msg("Consumer is already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.err = nil
	c.running = true

	go func() {
		c.log.Info().Str("queue", c.cfg.QueueName).Msg("Consumer started")
		err := c.queue.Consume(runCtx, c.cfg.QueueName, c.handleDelivery)
		if err != nil {
			c.log.Error().Err(err).Msg("Consumer stopped with error")
		}

		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.err = err
		c.mu.Unlock()

		cancel()
		close(done)
	}()
}

// Running reports whether a consume loop is alive.
func (c *Consumer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Done is closed when the most recently started consume loop exits, whether
// through Stop or on its own. It is nil before the first Start.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns the error the last consume loop exited with, if any.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stop ends consumption and waits for the in-flight message to finish, or
// for ctx to expire. After a timeout the consumer keeps reporting Running
// until the old loop actually exits.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
		c.log.Info().Msg("Consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("consumer stop: %w", ctx.Err())
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d queue.Delivery) error {
	var msg domain.DispatchMessage
	if err := d.Decode(&msg); err != nil {
		return fmt.Errorf("decode dispatch message: %w", err)
	}
	return c.HandleMessage(ctx, msg)
}

// HandleMessage delivers one dispatch message. A returned error rejects the
// message; gateway failures are recorded and do not return an error.
func (c *Consumer) HandleMessage(ctx context.Context, msg domain.DispatchMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid dispatch message: %w", err)
	}

	log := c.log.With().Uint("device_id", msg.DeviceID).Logger()
	if msg.NotificationID != nil {
		log = log.With().Uint("notification_id", *msg.NotificationID).Logger()
	}

	messageID, err := c.gateway.Send(ctx, msg.DeviceToken, toPush(msg.Title, msg.Body, msg.Data, msg.Priority))
	if err != nil {
		var gerr *fcm.GatewayError
		if !errors.As(err, &gerr) {
			return fmt.Errorf("send: %w", err)
		}
		c.recordFailure(ctx, log, msg, gerr)
		return nil
	}

	c.recordSuccess(ctx, log.With().Str("message_id", messageID).Logger(), msg, messageID)
	return nil
}

// recordSuccess is best-effort: the push already went out.
func (c *Consumer) recordSuccess(ctx context.Context, log zerolog.Logger, msg domain.DispatchMessage, messageID string) {
	at := c.now()

	if msg.NotificationID != nil {
		moved, err := c.notifications.MarkSent(ctx, *msg.NotificationID, messageID, at)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("Failed to mark notification sent")
		case !moved:
			log.Warn().Msg("Notification was not pending, status left unchanged")
		}
	}

	if msg.DeviceID != 0 {
		if err := c.devices.TouchLastActive(ctx, msg.DeviceID, at); err != nil {
			log.Warn().Err(err).Msg("Failed to update device activity")
		}
		if c.cfg.JobTracking {
			job := &domain.FcmJob{
				DeviceID:   msg.DeviceID,
				Identifier: msg.Identifier,
				MessageID:  &messageID,
				DeliverAt:  at,
			}
			if err := c.jobs.Create(ctx, job); err != nil {
				log.Error().Err(err).Msg("Failed to record fcm job")
			}
		}
	}

	c.publishDone(ctx, log, domain.DoneEvent{
		NotificationID: msg.NotificationID,
		UserID:         msg.UserID,
		DeviceID:       msg.DeviceID,
		Identifier:     msg.Identifier,
		Status:         domain.StatusSent,
		MessageID:      &messageID,
		DeliverAt:      &at,
	})
	log.Info().Msg("Notification delivered")
}

func (c *Consumer) recordFailure(ctx context.Context, log zerolog.Logger, msg domain.DispatchMessage, gerr *fcm.GatewayError) {
	status := domain.StatusFailed
	if fcm.IsInvalidTokenCode(gerr.Code) {
		status = domain.StatusInvalidToken
		c.deactivate(ctx, log, msg)
	}

	if msg.NotificationID != nil {
		if _, err := c.notifications.MarkFailed(ctx, *msg.NotificationID, status, gerr.Code, gerr.Message); err != nil {
			log.Error().Err(err).Msg("Failed to mark notification failed")
		}
	}

	code, message := gerr.Code, gerr.Message
	c.publishDone(ctx, log, domain.DoneEvent{
		NotificationID:  msg.NotificationID,
		UserID:          msg.UserID,
		DeviceID:        msg.DeviceID,
		Identifier:      msg.Identifier,
		Status:          status,
		FcmErrorCode:    &code,
		FcmErrorMessage: &message,
	})
	log.Warn().Str("code", gerr.Code).Str("status", string(status)).Msg("Notification delivery failed")
}

func (c *Consumer) deactivate(ctx context.Context, log zerolog.Logger, msg domain.DispatchMessage) {
	var err error
	if msg.DeviceID != 0 {
		err = c.devices.Deactivate(ctx, msg.DeviceID)
	} else {
		err = c.devices.DeactivateByToken(ctx, msg.DeviceToken)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to deactivate device with invalid token")
		return
	}
	log.Info().Msg("Deactivated device with invalid token")
}

func (c *Consumer) publishDone(ctx context.Context, log zerolog.Logger, event domain.DoneEvent) {
	if c.cfg.EventsExchange == "" {
		return
	}
	target := queue.ToExchange(c.cfg.EventsExchange, domain.DoneRoutingKey(event.Status))
	ok, err := c.events.Publish(ctx, target, event, queue.PublishOptions{})
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Failed to publish done event")
	case !ok:
		log.Warn().Msg("Done event dropped, publish buffer full")
	}
}
