package usecase

import (
	"context"
	"fmt"
	"regexp"

	"notification-relay/internal/notification/dto"
	"notification-relay/internal/shared"
	"notification-relay/pkg/fcm"
)

var topicPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_.~%]{1,900}$`)

// SendToTopic goes straight to the gateway; topic sends have no per-device
// queue messages to track.
func (u *notificationUsecase) SendToTopic(ctx context.Context, topic string, req *dto.DispatchRequest) (string, error) {
	if err := validateTopic(topic); err != nil {
		return "", err
	}
	if err := validateDispatch(req); err != nil {
		return "", err
	}

	id, err := u.gateway.SendToTopic(ctx, topic, toPush(req.Title, req.Body, req.Data, req.Priority))
	if err != nil {
		return "", shared.Gateway("Failed to send topic notification", err)
	}
	return id, nil
}

func (u *notificationUsecase) SubscribeDevicesToTopic(ctx context.Context, topic string, deviceIDs []uint) (*fcm.TopicResult, error) {
	return u.manageTopic(ctx, topic, deviceIDs, u.gateway.SubscribeToTopic)
}

func (u *notificationUsecase) UnsubscribeDevicesFromTopic(ctx context.Context, topic string, deviceIDs []uint) (*fcm.TopicResult, error) {
	return u.manageTopic(ctx, topic, deviceIDs, u.gateway.UnsubscribeFromTopic)
}

func (u *notificationUsecase) manageTopic(
	ctx context.Context,
	topic string,
	deviceIDs []uint,
	call func(context.Context, []string, string) (*fcm.TopicResult, error),
) (*fcm.TopicResult, error) {
	if err := validateTopic(topic); err != nil {
		return nil, err
	}
	if len(deviceIDs) == 0 {
		return nil, shared.Validation("deviceIds is required")
	}

	devices, err := u.devices.FindByIDs(ctx, deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("find devices: %w", err)
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		if d.IsActive {
			tokens = append(tokens, d.DeviceToken)
		}
	}
	if len(tokens) == 0 {
		return nil, shared.ErrNoActiveDevices
	}

	result, err := call(ctx, tokens, topic)
	if err != nil {
		return nil, shared.Gateway("Topic management failed", err)
	}
	u.log.Info().
		Str("topic", topic).
		Int("success", result.SuccessCount).
		Int("failure", result.FailureCount).
		Msg("Topic membership updated")
	return result, nil
}

func validateTopic(topic string) error {
	if !topicPattern.MatchString(topic) {
		return shared.Validation("Invalid topic name %q", topic)
	}
	return nil
}
