package repository

import (
	"context"
	"time"

	"notification-relay/internal/device/domain"
)

// DeviceRepository defines the interface for device data access.
// Find methods return (nil, nil) when no row matches.
type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error

	// UpsertByToken inserts device, or on a token collision overwrites only
	// updateColumns of the existing row. It returns the stored row.
	UpsertByToken(ctx context.Context, device *domain.Device, updateColumns []string) (*domain.Device, error)

	FindByID(ctx context.Context, id uint) (*domain.Device, error)
	FindByToken(ctx context.Context, token string) (*domain.Device, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*domain.Device, error)
	List(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, int64, error)

	// ListActive returns every active device in id order.
	ListActive(ctx context.Context) ([]*domain.Device, error)

	// ListActiveByUser returns a user's active devices, most recently active first.
	ListActiveByUser(ctx context.Context, userID uint) ([]*domain.Device, error)

	Update(ctx context.Context, device *domain.Device) error
	Delete(ctx context.Context, id uint) (bool, error)
	Deactivate(ctx context.Context, id uint) error
	DeactivateByToken(ctx context.Context, token string) error
	TouchLastActive(ctx context.Context, id uint, at time.Time) error
}
