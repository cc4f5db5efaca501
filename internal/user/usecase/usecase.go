package usecase

import (
	"context"

	"notification-relay/internal/user/domain"
	"notification-relay/internal/user/dto"
)

// UserUsecase defines the interface for user business logic
type UserUsecase interface {
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*domain.User, error)
	ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int64, error)
	GetUser(ctx context.Context, id uint) (*domain.User, error)
	UpdateUser(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, id uint) error
}
