package usecase

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	devicedomain "notification-relay/internal/device/domain"
	"notification-relay/internal/notification/domain"
	"notification-relay/internal/notification/dto"
	"notification-relay/internal/shared"
	"notification-relay/pkg/fcm"
	"notification-relay/pkg/queue"
)

const (
	defaultTitle = "New Notification"
	// codeQueueUnavailable marks notifications whose message never reached the queue.
	codeQueueUnavailable = "queue/unavailable"
)

func (u *notificationUsecase) DispatchToAll(ctx context.Context, req *dto.DispatchRequest) (*dto.DispatchResult, error) {
	if err := validateDispatch(req); err != nil {
		return nil, err
	}

	devices, err := u.devices.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, shared.ErrNoActiveDevices
	}
	return u.fanOut(ctx, devices, req)
}

func (u *notificationUsecase) DispatchToUser(ctx context.Context, userID uint, req *dto.DispatchRequest) (*dto.DispatchResult, error) {
	if !u.cfg.UserScoped {
		return nil, shared.Validation("Device ownership is disabled")
	}
	if err := validateDispatch(req); err != nil {
		return nil, err
	}
	if err := u.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	devices, err := u.devices.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, shared.ErrNoActiveDevicesForUser
	}
	return u.fanOut(ctx, devices, req)
}

// fanOut publishes one message per device. A failed publish is recorded on
// that device's entry and the loop continues; only a dispatch where every
// publish failed is an error.
func (u *notificationUsecase) fanOut(ctx context.Context, devices []*devicedomain.Device, req *dto.DispatchRequest) (*dto.DispatchResult, error) {
	now := u.now().UTC()
	result := &dto.DispatchResult{
		Title:        req.Title,
		Body:         req.Body,
		TotalDevices: len(devices),
		Devices:      make([]dto.DeviceDispatch, 0, len(devices)),
		Timestamp:    now,
	}

	var identifier *string
	if u.cfg.JobTracking {
		id := u.newID()
		identifier = &id
		result.Identifier = id
	}

	var lastErr error
	for _, device := range devices {
		msg := domain.DispatchMessage{
			Version:     domain.MessageVersion,
			DeviceID:    device.ID,
			DeviceToken: device.DeviceToken,
			Title:       req.Title,
			Body:        req.Body,
			Data:        dataOrEmpty(req.Data),
			Priority:    req.Priority,
			Identifier:  identifier,
			Timestamp:   now,
		}
		if u.cfg.UserScoped {
			msg.UserID = device.UserID
		}

		entry := dto.DeviceDispatch{
			DeviceID:    device.ID,
			DeviceToken: device.DeviceToken,
			Platform:    string(device.Platform),
			UserID:      msg.UserID,
		}
		if err := u.publish(ctx, msg); err != nil {
			lastErr = err
			entry.Error = err.Error()
			result.Failed++
			u.log.Warn().Err(err).Uint("device_id", device.ID).Msg("Failed to queue notification")
		} else {
			entry.Queued = true
			result.Queued++
		}
		result.Devices = append(result.Devices, entry)
	}

	if result.Queued == 0 {
		return nil, shared.Transport("Failed to queue notification", lastErr)
	}
	u.log.Info().
		Int("queued", result.Queued).
		Int("failed", result.Failed).
		Msg("Notification dispatched")
	return result, nil
}

func (u *notificationUsecase) CreateAndQueue(ctx context.Context, req *dto.CreateNotificationRequest) (*domain.Notification, error) {
	if !u.cfg.UserScoped {
		return nil, shared.Validation("Notification history is disabled")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, shared.Validation("Message is required")
	}
	if req.UserID == 0 {
		return nil, shared.Validation("UserId is required")
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return nil, err
	}
	if err := u.ensureUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	device, err := u.resolveDevice(ctx, req.UserID, req.DeviceID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	notificationType := req.NotificationType
	if notificationType == "" {
		notificationType = domain.DefaultNotificationType
	}

	n := &domain.Notification{
		UserID:           req.UserID,
		DeviceID:         &device.ID,
		DeviceToken:      device.DeviceToken,
		Title:            title,
		Body:             message,
		Data:             datatypes.JSONMap(dataOrEmpty(req.Data)),
		NotificationType: notificationType,
		Status:           domain.StatusPending,
	}
	if err := u.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	msg := domain.DispatchMessage{
		Version:        domain.MessageVersion,
		NotificationID: &n.ID,
		UserID:         &n.UserID,
		DeviceID:       device.ID,
		DeviceToken:    device.DeviceToken,
		Title:          title,
		Body:           message,
		Data:           dataOrEmpty(req.Data),
		Priority:       priority,
		Timestamp:      u.now().UTC(),
	}
	if u.cfg.JobTracking {
		id := u.newID()
		msg.Identifier = &id
	}

	if err := u.publish(ctx, msg); err != nil {
		// The row would otherwise stay pending forever.
		if _, markErr := u.notifications.MarkFailed(ctx, n.ID, domain.StatusFailed, codeQueueUnavailable, err.Error()); markErr != nil {
			u.log.Error().Err(markErr).Uint("notification_id", n.ID).Msg("Failed to record queue failure")
		}
		return nil, shared.Transport("Failed to queue notification", err)
	}

	u.log.Info().
		Uint("notification_id", n.ID).
		Uint("device_id", device.ID).
		Msg("Notification created and queued")
	return n, nil
}

// resolveDevice picks the explicit device when given, otherwise the user's
// most recently active one. Inactive or foreign devices are not found.
func (u *notificationUsecase) resolveDevice(ctx context.Context, userID uint, deviceID *uint) (*devicedomain.Device, error) {
	if deviceID != nil {
		device, err := u.devices.FindByID(ctx, *deviceID)
		if err != nil {
			return nil, fmt.Errorf("find device: %w", err)
		}
		if device == nil || !device.IsActive || device.UserID == nil || *device.UserID != userID {
			return nil, shared.NotFound("Device not found or not active for this user")
		}
		return device, nil
	}

	devices, err := u.devices.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, shared.ErrNoActiveDevicesForUser
	}
	return devices[0], nil
}

func (u *notificationUsecase) publish(ctx context.Context, msg domain.DispatchMessage) error {
	ok, err := u.publisher.Publish(ctx, queue.ToQueue(u.cfg.QueueName), msg, queue.PublishOptions{})
	if err != nil {
		return err
	}
	if !ok {
		return queue.ErrBufferFull
	}
	return nil
}

func (u *notificationUsecase) ensureUser(ctx context.Context, id uint) error {
	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return shared.ErrUserNotFound
	}
	return nil
}

func validateDispatch(req *dto.DispatchRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" || req.Body == "" {
		return shared.Validation("Title and body are required")
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return err
	}
	req.Priority = priority
	return nil
}

func parsePriority(raw string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(raw)); p {
	case "":
		return domain.PriorityNormal, nil
	case domain.PriorityNormal, domain.PriorityHigh:
		return p, nil
	default:
		return "", shared.Validation("priority must be normal or high")
	}
}

func dataOrEmpty(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}

func toPush(title, body string, data map[string]any, priority string) fcm.Notification {
	n := fcm.Notification{
		Title:    title,
		Body:     body,
		Data:     fcm.StringifyData(data),
		Priority: fcm.PriorityNormal,
	}
	if priority == domain.PriorityHigh {
		n.Priority = fcm.PriorityHigh
	}
	return n
}
