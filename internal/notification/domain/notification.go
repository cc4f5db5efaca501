package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Status is a notification's delivery state. Only pending moves; the other
// states are terminal.
type Status string

const (
	StatusPending      Status = "pending"
	StatusSent         Status = "sent"
	StatusFailed       Status = "failed"
	StatusInvalidToken Status = "invalid_token"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusInvalidToken:
		return true
	}
	return false
}

const DefaultNotificationType = "general"

type Notification struct {
	ID       uint  `json:"id" gorm:"primaryKey"`
	UserID   uint  `json:"userId" gorm:"not null;index"`
	DeviceID *uint `json:"deviceId" gorm:"index"`
	// DeviceToken is captured at send time so history survives device changes.
	DeviceToken      string            `json:"deviceToken" gorm:"size:500;not null"`
	Title            string            `json:"title" gorm:"size:255;not null"`
	Body             string            `json:"body" gorm:"not null"`
	Data             datatypes.JSONMap `json:"data" gorm:"type:jsonb"`
	NotificationType string            `json:"notificationType" gorm:"size:100"`
	Status           Status            `json:"status" gorm:"size:16;not null;index"`
	FcmMessageID     *string           `json:"fcmMessageId" gorm:"size:255"`
	FcmErrorCode     *string           `json:"fcmErrorCode" gorm:"size:100"`
	FcmErrorMessage  *string           `json:"fcmErrorMessage"`
	SentAt           *time.Time        `json:"sentAt"`
	DeliveredAt      *time.Time        `json:"deliveredAt"`
	ReadAt           *time.Time        `json:"readAt"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type NotificationFilter struct {
	UserID uint
	Status Status
	Limit  int
	Offset int
}
