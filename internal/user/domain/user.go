package domain

import "time"

type User struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"size:255;not null"`
	Email       string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Phone       *string    `json:"phone" gorm:"size:50;uniqueIndex"`
	Password    *string    `json:"-" gorm:"size:255"` // bcrypt hash, never returned
	IsActive    bool       `json:"isActive" gorm:"not null"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UserFilter narrows a user listing.
type UserFilter struct {
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}
