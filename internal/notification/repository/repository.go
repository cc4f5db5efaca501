package repository

import (
	"context"
	"time"

	"notification-relay/internal/notification/domain"
)

// NotificationRepository persists notification history. The Mark* methods
// only move rows that are still pending and report whether one moved.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	FindByID(ctx context.Context, id uint) (*domain.Notification, error)
	List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error)
	MarkSent(ctx context.Context, id uint, messageID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint, status domain.Status, code, message string) (bool, error)
	MarkRead(ctx context.Context, id uint, at time.Time) (bool, error)
}

// FcmJobRepository is append-only.
type FcmJobRepository interface {
	Create(ctx context.Context, job *domain.FcmJob) error
	List(ctx context.Context, filter domain.FcmJobFilter) ([]*domain.FcmJob, int64, error)
}
