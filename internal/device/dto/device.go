package dto

import "notification-relay/internal/device/domain"

// RegisterDeviceRequest creates a device or refreshes the one holding the same token.
// Nil fields leave the stored value untouched.
type RegisterDeviceRequest struct {
	DeviceToken string  `json:"deviceToken" binding:"required"`
	DeviceID    *string `json:"deviceId"`
	Platform    *string `json:"platform"`
	AppVersion  *string `json:"appVersion"`
	OSVersion   *string `json:"osVersion"`
	DeviceModel *string `json:"deviceModel"`
	UserID      *uint   `json:"userId"`
}

type CreateDeviceRequest struct {
	DeviceToken string  `json:"deviceToken" binding:"required"`
	DeviceID    *string `json:"deviceId"`
	Platform    *string `json:"platform"`
	AppVersion  *string `json:"appVersion"`
	OSVersion   *string `json:"osVersion"`
	DeviceModel *string `json:"deviceModel"`
	UserID      *uint   `json:"userId"`
	IsActive    *bool   `json:"isActive"`
}

type UpdateDeviceRequest struct {
	DeviceToken *string `json:"deviceToken"`
	DeviceID    *string `json:"deviceId"`
	Platform    *string `json:"platform"`
	AppVersion  *string `json:"appVersion"`
	OSVersion   *string `json:"osVersion"`
	DeviceModel *string `json:"deviceModel"`
	UserID      *uint   `json:"userId"`
	IsActive    *bool   `json:"isActive"`
}

type DeviceListResponse struct {
	Devices []*domain.Device `json:"devices"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}
