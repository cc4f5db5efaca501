package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageVersion is the dispatch schema this build writes. Messages without a
// version field predate versioning and share the same shape.
const MessageVersion = 1

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// DispatchMessage is the queue payload for one device.
type DispatchMessage struct {
	Version        int            `json:"version"`
	NotificationID *uint          `json:"notificationId,omitempty"`
	UserID         *uint          `json:"userId,omitempty"`
	DeviceID       uint           `json:"deviceId"`
	DeviceToken    string         `json:"deviceToken"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data"`
	Priority       string         `json:"priority"`
	Identifier     *string        `json:"identifier,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Validate rejects payloads the consumer cannot deliver.
func (m DispatchMessage) Validate() error {
	var errs []error
	if m.Version > MessageVersion {
		errs = append(errs, fmt.Errorf("unsupported message version %d", m.Version))
	}
	if strings.TrimSpace(m.DeviceToken) == "" {
		errs = append(errs, errors.New("deviceToken is required"))
	}
	if strings.TrimSpace(m.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if strings.TrimSpace(m.Body) == "" {
		errs = append(errs, errors.New("body is required"))
	}
	return errors.Join(errs...)
}

// DoneEvent reports the outcome of one dispatch message.
type DoneEvent struct {
	NotificationID  *uint      `json:"notificationId"`
	UserID          *uint      `json:"userId"`
	DeviceID        uint       `json:"deviceId"`
	Identifier      *string    `json:"identifier"`
	Status          Status     `json:"status"`
	MessageID       *string    `json:"messageId"`
	FcmErrorCode    *string    `json:"fcmErrorCode,omitempty"`
	FcmErrorMessage *string    `json:"fcmErrorMessage,omitempty"`
	DeliverAt       *time.Time `json:"deliverAt"`
}

// DoneRoutingKey is the topic routing key done events are published under.
func DoneRoutingKey(status Status) string {
	return "notification.done." + string(status)
}

// DoneBindingKey matches every done event.
const DoneBindingKey = "notification.done.#"
