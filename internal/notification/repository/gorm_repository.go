package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"notification-relay/internal/notification/domain"
)

type gormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based notification repository
func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormNotificationRepository) FindByID(ctx context.Context, id uint) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *gormNotificationRepository) List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, int64, error) {
	var notifications []*domain.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", filter.UserID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *gormNotificationRepository) MarkSent(ctx context.Context, id uint, messageID string, at time.Time) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":         domain.StatusSent,
		"fcm_message_id": messageID,
		"sent_at":        at,
		"updated_at":     at,
	})
}

func (r *gormNotificationRepository) MarkFailed(ctx context.Context, id uint, status domain.Status, code, message string) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":            status,
		"fcm_error_code":    code,
		"fcm_error_message": message,
		"updated_at":        time.Now(),
	})
}

// transition applies values only while the row is still pending, so a
// redelivered message cannot overwrite a recorded outcome.
func (r *gormNotificationRepository) transition(ctx context.Context, id uint, values map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) MarkRead(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"read_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type gormFcmJobRepository struct {
	db *gorm.DB
}

// NewGormFcmJobRepository creates a new GORM-based fcm job repository
func NewGormFcmJobRepository(db *gorm.DB) FcmJobRepository {
	return &gormFcmJobRepository{db: db}
}

func (r *gormFcmJobRepository) Create(ctx context.Context, job *domain.FcmJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *gormFcmJobRepository) List(ctx context.Context, filter domain.FcmJobFilter) ([]*domain.FcmJob, int64, error) {
	var jobs []*domain.FcmJob
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.FcmJob{})
	if filter.DeviceID != nil {
		query = query.Where("device_id = ?", *filter.DeviceID)
	}
	if filter.MessageID != "" {
		query = query.Where("message_id = ?", filter.MessageID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}
