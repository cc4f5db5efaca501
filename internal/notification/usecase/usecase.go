package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"notification-relay/internal/notification/domain"
	"notification-relay/internal/notification/dto"
	"notification-relay/internal/notification/repository"
	"notification-relay/pkg/fcm"
)

// NotificationUsecase is everything the HTTP side does with notifications:
// fan-out dispatch, tracked single sends, topic sends and history queries.
type NotificationUsecase interface {
	DispatchToAll(ctx context.Context, req *dto.DispatchRequest) (*dto.DispatchResult, error)
	DispatchToUser(ctx context.Context, userID uint, req *dto.DispatchRequest) (*dto.DispatchResult, error)
	CreateAndQueue(ctx context.Context, req *dto.CreateNotificationRequest) (*domain.Notification, error)

	SendToTopic(ctx context.Context, topic string, req *dto.DispatchRequest) (string, error)
	SubscribeDevicesToTopic(ctx context.Context, topic string, deviceIDs []uint) (*fcm.TopicResult, error)
	UnsubscribeDevicesFromTopic(ctx context.Context, topic string, deviceIDs []uint) (*fcm.TopicResult, error)

	GetNotification(ctx context.Context, id uint) (*domain.Notification, error)
	ListUserNotifications(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error)
	MarkNotificationRead(ctx context.Context, id uint) (*domain.Notification, error)
	ListFcmJobs(ctx context.Context, filter domain.FcmJobFilter) ([]*domain.FcmJob, int64, error)
}

type Config struct {
	QueueName string
	// UserScoped enables device ownership and notification history.
	UserScoped bool
	// JobTracking stamps dispatches with an identifier recorded on FcmJob rows.
	JobTracking bool
}

type notificationUsecase struct {
	devices       DeviceDirectory
	users         UserDirectory
	notifications repository.NotificationRepository
	jobs          repository.FcmJobRepository
	publisher     Publisher
	gateway       Gateway
	cfg           Config
	log           zerolog.Logger
	now           func() time.Time
	newID         func() string
}

// NewNotificationUsecase creates a new instance of notificationUsecase
func NewNotificationUsecase(
	devices DeviceDirectory,
	users UserDirectory,
	notifications repository.NotificationRepository,
	jobs repository.FcmJobRepository,
	publisher Publisher,
	gateway Gateway,
	cfg Config,
	log zerolog.Logger,
) NotificationUsecase {
	return &notificationUsecase{
		devices:       devices,
		users:         users,
		notifications: notifications,
		jobs:          jobs,
		publisher:     publisher,
		gateway:       gateway,
		cfg:           cfg,
		log:           log.With().Str("component", "NotificationProducer").Logger(),
		now:           time.Now,
		newID:         uuid.NewString,
	}
}
