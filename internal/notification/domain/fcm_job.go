package domain

import "time"

// FcmJob is an append-only record of a confirmed send.
type FcmJob struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	DeviceID   uint      `json:"deviceId" gorm:"not null;index"`
	Identifier *string   `json:"identifier" gorm:"size:255"`
	MessageID  *string   `json:"messageId" gorm:"size:255;index"`
	DeliverAt  time.Time `json:"deliverAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type FcmJobFilter struct {
	DeviceID  *uint
	MessageID string
	Limit     int
	Offset    int
}
