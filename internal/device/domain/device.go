package domain

import "time"

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

// Device is a push registration. DeviceToken is globally unique.
type Device struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID *uint `json:"userId,omitempty" gorm:"index"`
	// DeviceToken is the push gateway registration token.
	DeviceToken string `json:"deviceToken" gorm:"size:500;uniqueIndex;not null"`
	// ClientDeviceID is the identifier the client app reports for itself.
	ClientDeviceID *string    `json:"deviceId" gorm:"column:device_id;size:255"`
	Platform       Platform   `json:"platform" gorm:"size:16;not null"`
	AppVersion     *string    `json:"appVersion" gorm:"size:50"`
	OSVersion      *string    `json:"osVersion" gorm:"column:os_version;size:50"`
	DeviceModel    *string    `json:"deviceModel" gorm:"size:255"`
	IsActive       bool       `json:"isActive" gorm:"not null"`
	LastActiveAt   *time.Time `json:"lastActiveAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type DeviceFilter struct {
	UserID   *uint
	Platform Platform
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}
