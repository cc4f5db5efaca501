package repository

import (
	"context"
	"time"

	"notification-relay/internal/user/domain"
)

// UserRepository defines the interface for user data access.
// Find methods return (nil, nil) when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int64, error)
	Update(ctx context.Context, user *domain.User) error
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id uint) (bool, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}
