package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"notification-relay/internal/device/domain"
	"notification-relay/internal/device/dto"
	"notification-relay/internal/device/repository"
	"notification-relay/internal/shared"
)

type deviceUsecase struct {
	repo       repository.DeviceRepository
	users      UserFinder
	userScoped bool
	now        func() time.Time
}

// NewDeviceUsecase builds the registry. With userScoped off, owner ids in
// requests are ignored and devices stay anonymous.
func NewDeviceUsecase(repo repository.DeviceRepository, users UserFinder, userScoped bool) DeviceUsecase {
	return &deviceUsecase{
		repo:       repo,
		users:      users,
		userScoped: userScoped,
		now:        time.Now,
	}
}

func (u *deviceUsecase) RegisterDevice(ctx context.Context, req *dto.RegisterDeviceRequest) (*domain.Device, error) {
	token := strings.TrimSpace(req.DeviceToken)
	if token == "" {
		return nil, shared.Validation("deviceToken is required")
	}

	now := u.now()
	device := &domain.Device{
		DeviceToken:    token,
		ClientDeviceID: req.DeviceID,
		Platform:       domain.PlatformAndroid,
		AppVersion:     req.AppVersion,
		OSVersion:      req.OSVersion,
		DeviceModel:    req.DeviceModel,
		IsActive:       true,
		LastActiveAt:   &now,
	}
	// On a token collision only the fields the client sent are overwritten.
	columns := []string{"is_active", "last_active_at", "updated_at"}

	if req.Platform != nil {
		platform, err := parsePlatform(*req.Platform)
		if err != nil {
			return nil, err
		}
		device.Platform = platform
		columns = append(columns, "platform")
	}
	if req.DeviceID != nil {
		columns = append(columns, "device_id")
	}
	if req.AppVersion != nil {
		columns = append(columns, "app_version")
	}
	if req.OSVersion != nil {
		columns = append(columns, "os_version")
	}
	if req.DeviceModel != nil {
		columns = append(columns, "device_model")
	}
	if u.userScoped && req.UserID != nil {
		if err := u.ensureUser(ctx, *req.UserID); err != nil {
			return nil, err
		}
		device.UserID = req.UserID
		columns = append(columns, "user_id")
	}

	stored, err := u.repo.UpsertByToken(ctx, device, columns)
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return stored, nil
}

func (u *deviceUsecase) CreateDevice(ctx context.Context, req *dto.CreateDeviceRequest) (*domain.Device, error) {
	token := strings.TrimSpace(req.DeviceToken)
	if token == "" {
		return nil, shared.Validation("deviceToken is required")
	}
	if err := u.ensureTokenFree(ctx, token); err != nil {
		return nil, err
	}

	device := &domain.Device{
		DeviceToken:    token,
		ClientDeviceID: req.DeviceID,
		Platform:       domain.PlatformAndroid,
		AppVersion:     req.AppVersion,
		OSVersion:      req.OSVersion,
		DeviceModel:    req.DeviceModel,
		IsActive:       true,
	}
	if req.Platform != nil {
		platform, err := parsePlatform(*req.Platform)
		if err != nil {
			return nil, err
		}
		device.Platform = platform
	}
	if req.IsActive != nil {
		device.IsActive = *req.IsActive
	}
	if u.userScoped && req.UserID != nil {
		if err := u.ensureUser(ctx, *req.UserID); err != nil {
			return nil, err
		}
		device.UserID = req.UserID
	}

	if err := u.repo.Create(ctx, device); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.Conflict("Device with this token already exists")
		}
		return nil, fmt.Errorf("create device: %w", err)
	}
	return device, nil
}

func (u *deviceUsecase) ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, int64, error) {
	if filter.Platform != "" && !filter.Platform.Valid() {
		return nil, 0, shared.Validation("Invalid platform %q", filter.Platform)
	}
	if !u.userScoped {
		filter.UserID = nil
	}
	devices, total, err := u.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	return devices, total, nil
}

func (u *deviceUsecase) GetDevice(ctx context.Context, id uint) (*domain.Device, error) {
	device, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if device == nil {
		return nil, shared.NotFound("Device with ID %d not found", id)
	}
	return device, nil
}

func (u *deviceUsecase) UpdateDevice(ctx context.Context, id uint, req *dto.UpdateDeviceRequest) (*domain.Device, error) {
	device, err := u.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DeviceToken != nil {
		token := strings.TrimSpace(*req.DeviceToken)
		if token == "" {
			return nil, shared.Validation("deviceToken must not be empty")
		}
		if token != device.DeviceToken {
			if err := u.ensureTokenFree(ctx, token); err != nil {
				return nil, err
			}
			device.DeviceToken = token
		}
	}
	if req.Platform != nil {
		platform, err := parsePlatform(*req.Platform)
		if err != nil {
			return nil, err
		}
		device.Platform = platform
	}
	if req.DeviceID != nil {
		device.ClientDeviceID = req.DeviceID
	}
	if req.AppVersion != nil {
		device.AppVersion = req.AppVersion
	}
	if req.OSVersion != nil {
		device.OSVersion = req.OSVersion
	}
	if req.DeviceModel != nil {
		device.DeviceModel = req.DeviceModel
	}
	if req.IsActive != nil {
		device.IsActive = *req.IsActive
	}
	if u.userScoped && req.UserID != nil {
		if err := u.ensureUser(ctx, *req.UserID); err != nil {
			return nil, err
		}
		device.UserID = req.UserID
	}

	if err := u.repo.Update(ctx, device); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.Conflict("Device with this token already exists")
		}
		return nil, fmt.Errorf("update device: %w", err)
	}
	return device, nil
}

func (u *deviceUsecase) DeleteDevice(ctx context.Context, id uint) error {
	deleted, err := u.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if !deleted {
		return shared.NotFound("Device with ID %d not found", id)
	}
	return nil
}

func (u *deviceUsecase) ListUserDevices(ctx context.Context, userID uint) ([]*domain.Device, error) {
	if !u.userScoped {
		return nil, shared.Validation("Device ownership is disabled")
	}
	if err := u.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	filter := domain.DeviceFilter{UserID: &userID, Limit: shared.MaxLimit}
	devices, _, err := u.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list user devices: %w", err)
	}
	return devices, nil
}

func (u *deviceUsecase) ensureUser(ctx context.Context, id uint) error {
	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return shared.ErrUserNotFound
	}
	return nil
}

func (u *deviceUsecase) ensureTokenFree(ctx context.Context, token string) error {
	existing, err := u.repo.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("find device by token: %w", err)
	}
	if existing != nil {
		return shared.Conflict("Device with this token already exists")
	}
	return nil
}

func parsePlatform(raw string) (domain.Platform, error) {
	p := domain.Platform(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", shared.Validation("platform must be one of ios, android, web")
	}
	return p, nil
}
