package usecase

import (
	"context"

	"notification-relay/internal/device/domain"
	"notification-relay/internal/device/dto"
	userdomain "notification-relay/internal/user/domain"
)

// DeviceUsecase defines the interface for device registry business logic
type DeviceUsecase interface {
	// RegisterDevice creates a device or refreshes the row that already holds the token.
	RegisterDevice(ctx context.Context, req *dto.RegisterDeviceRequest) (*domain.Device, error)
	CreateDevice(ctx context.Context, req *dto.CreateDeviceRequest) (*domain.Device, error)
	ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, int64, error)
	GetDevice(ctx context.Context, id uint) (*domain.Device, error)
	UpdateDevice(ctx context.Context, id uint, req *dto.UpdateDeviceRequest) (*domain.Device, error)
	DeleteDevice(ctx context.Context, id uint) error
	ListUserDevices(ctx context.Context, userID uint) ([]*domain.Device, error)
}

// UserFinder resolves device owners.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*userdomain.User, error)
}
