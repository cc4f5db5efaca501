package usecase

import (
	"context"
	"fmt"

	"notification-relay/internal/notification/domain"
	"notification-relay/internal/shared"
)

func (u *notificationUsecase) GetNotification(ctx context.Context, id uint) (*domain.Notification, error) {
	n, err := u.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	if n == nil {
		return nil, shared.NotFound("Notification not found")
	}
	return n, nil
}

func (u *notificationUsecase) ListUserNotifications(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error) {
	if !u.cfg.UserScoped {
		return nil, 0, shared.Validation("Notification history is disabled")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.Validation("Invalid status %q", filter.Status)
	}
	items, total, err := u.notifications.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

func (u *notificationUsecase) MarkNotificationRead(ctx context.Context, id uint) (*domain.Notification, error) {
	moved, err := u.notifications.MarkRead(ctx, id, u.now())
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	if !moved {
		return nil, shared.NotFound("Notification not found")
	}
	return u.GetNotification(ctx, id)
}

func (u *notificationUsecase) ListFcmJobs(ctx context.Context, filter domain.FcmJobFilter) ([]*domain.FcmJob, int64, error) {
	jobs, total, err := u.jobs.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list fcm jobs: %w", err)
	}
	return jobs, total, nil
}
