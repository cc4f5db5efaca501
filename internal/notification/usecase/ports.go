package usecase

import (
	"context"
	"time"

	devicedomain "notification-relay/internal/device/domain"
	userdomain "notification-relay/internal/user/domain"
	"notification-relay/pkg/fcm"
	"notification-relay/pkg/queue"
)

// Publisher puts messages on the queue transport.
type Publisher interface {
	Publish(ctx context.Context, target queue.Target, message any, opts queue.PublishOptions) (bool, error)
}

// QueueConsumer drains a queue until ctx is done.
type QueueConsumer interface {
	Consume(ctx context.Context, queueName string, handler queue.Handler) error
}

// EventSubscriber receives exchange messages matching a binding key.
type EventSubscriber interface {
	Subscribe(ctx context.Context, exchange, bindingKey, subscriber string, handler queue.Handler) error
}

// Gateway is the push provider.
type Gateway interface {
	Send(ctx context.Context, token string, n fcm.Notification) (string, error)
	SendToTopic(ctx context.Context, topic string, n fcm.Notification) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*fcm.TopicResult, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*fcm.TopicResult, error)
}

// DeviceDirectory is the slice of the device registry the pipeline reads and heals.
type DeviceDirectory interface {
	FindByID(ctx context.Context, id uint) (*devicedomain.Device, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*devicedomain.Device, error)
	ListActive(ctx context.Context) ([]*devicedomain.Device, error)
	ListActiveByUser(ctx context.Context, userID uint) ([]*devicedomain.Device, error)
	Deactivate(ctx context.Context, id uint) error
	DeactivateByToken(ctx context.Context, token string) error
	TouchLastActive(ctx context.Context, id uint, at time.Time) error
}

type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*userdomain.User, error)
}
