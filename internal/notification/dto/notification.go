package dto

import (
	"time"

	"notification-relay/internal/notification/domain"
)

// DispatchRequest is the body of the fan-out and topic endpoints.
type DispatchRequest struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data"`
	Priority string         `json:"priority"`
}

// DeviceDispatch is the per-device outcome of a fan-out.
type DeviceDispatch struct {
	DeviceID    uint   `json:"deviceId"`
	DeviceToken string `json:"deviceToken"`
	Platform    string `json:"platform"`
	UserID      *uint  `json:"userId,omitempty"`
	Queued      bool   `json:"queued"`
	Error       string `json:"error,omitempty"`
}

type DispatchResult struct {
	Title        string           `json:"title"`
	Body         string           `json:"body"`
	Identifier   string           `json:"identifier,omitempty"`
	TotalDevices int              `json:"totalDevices"`
	Queued       int              `json:"queued"`
	Failed       int              `json:"failed"`
	Devices      []DeviceDispatch `json:"devices"`
	Timestamp    time.Time        `json:"timestamp"`
}

// CreateNotificationRequest queues one tracked notification for a user.
type CreateNotificationRequest struct {
	UserID           uint           `json:"userId"`
	Message          string         `json:"message"`
	Title            string         `json:"title"`
	DeviceID         *uint          `json:"deviceId"`
	Data             map[string]any `json:"data"`
	NotificationType string         `json:"notificationType"`
	Priority         string         `json:"priority"`
}

type TopicDevicesRequest struct {
	DeviceIDs []uint `json:"deviceIds" binding:"required,min=1"`
}

type TopicSendResponse struct {
	Topic     string `json:"topic"`
	MessageID string `json:"messageId"`
}

type NotificationListResponse struct {
	Notifications []*domain.Notification `json:"notifications"`
	Total         int64                  `json:"total"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

type FcmJobListResponse struct {
	Jobs   []*domain.FcmJob `json:"jobs"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}
