package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"notification-relay/internal/device/domain"
)

type gormDeviceRepository struct {
	db *gorm.DB
}

// NewGormDeviceRepository creates a new GORM-based device repository
func NewGormDeviceRepository(db *gorm.DB) DeviceRepository {
	return &gormDeviceRepository{db: db}
}

func (r *gormDeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *gormDeviceRepository) UpsertByToken(ctx context.Context, device *domain.Device, updateColumns []string) (*domain.Device, error) {
	// Atomic upsert: INSERT ... ON CONFLICT (device_token) DO UPDATE
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_token"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(device).Error
	if err != nil {
		return nil, err
	}

	stored, err := r.FindByToken(ctx, device.DeviceToken)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return stored, nil
}

func (r *gormDeviceRepository) FindByID(ctx context.Context, id uint) (*domain.Device, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormDeviceRepository) FindByToken(ctx context.Context, token string) (*domain.Device, error) {
	return r.first(ctx, "device_token = ?", token)
}

func (r *gormDeviceRepository) first(ctx context.Context, query string, arg any) (*domain.Device, error) {
	var device domain.Device
	err := r.db.WithContext(ctx).Where(query, arg).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

func (r *gormDeviceRepository) FindByIDs(ctx context.Context, ids []uint) ([]*domain.Device, error) {
	var devices []*domain.Device
	if len(ids) == 0 {
		return devices, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&devices).Error
	return devices, err
}

func (r *gormDeviceRepository) List(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, int64, error) {
	var devices []*domain.Device
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Device{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("device_token ILIKE ? OR device_id ILIKE ? OR device_model ILIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&devices).Error
	if err != nil {
		return nil, 0, err
	}
	return devices, total, nil
}

func (r *gormDeviceRepository) ListActive(ctx context.Context) ([]*domain.Device, error) {
	var devices []*domain.Device
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&devices).Error
	return devices, err
}

func (r *gormDeviceRepository) ListActiveByUser(ctx context.Context, userID uint) ([]*domain.Device, error) {
	var devices []*domain.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_active_at DESC NULLS LAST, id DESC").
		Find(&devices).Error
	return devices, err
}

func (r *gormDeviceRepository) Update(ctx context.Context, device *domain.Device) error {
	return r.db.WithContext(ctx).Save(device).Error
}

func (r *gormDeviceRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Device{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormDeviceRepository) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&domain.Device{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()}).Error
}

func (r *gormDeviceRepository) DeactivateByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Model(&domain.Device{}).Where("device_token = ?", token).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now()}).Error
}

func (r *gormDeviceRepository) TouchLastActive(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Device{}).Where("id = ?", id).
		Updates(map[string]any{"last_active_at": at, "updated_at": at}).Error
}
