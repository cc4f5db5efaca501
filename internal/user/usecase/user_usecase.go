package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"notification-relay/internal/shared"
	"notification-relay/internal/user/domain"
	"notification-relay/internal/user/dto"
	"notification-relay/internal/user/repository"
)

type userUsecase struct {
	repo repository.UserRepository
}

// NewUserUsecase creates a new instance of userUsecase
func NewUserUsecase(repo repository.UserRepository) UserUsecase {
	return &userUsecase{repo: repo}
}

func (u *userUsecase) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		return nil, shared.Validation("name and email are required")
	}

	if err := u.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}
	phone := normalizePhone(req.Phone)
	if phone != nil {
		if err := u.ensurePhoneFree(ctx, *phone); err != nil {
			return nil, err
		}
	}

	user := &domain.User{
		Name:     name,
		Email:    email,
		Phone:    phone,
		IsActive: true,
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := repository.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = &hash
	}

	if err := u.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.Conflict("User with this email or phone already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (u *userUsecase) ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int64, error) {
	users, total, err := u.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (u *userUsecase) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	user, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, shared.NotFound("User with ID %d not found", id)
	}
	return user, nil
}

func (u *userUsecase) UpdateUser(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*domain.User, error) {
	user, err := u.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		if err := u.ensureEmailFree(ctx, *req.Email); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}
	if req.Phone != nil {
		phone := normalizePhone(req.Phone)
		if phone != nil && (user.Phone == nil || *phone != *user.Phone) {
			if err := u.ensurePhoneFree(ctx, *phone); err != nil {
				return nil, err
			}
		}
		user.Phone = phone
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, shared.Validation("name must not be empty")
		}
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Password != nil {
		hash, err := repository.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = &hash
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := u.repo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.Conflict("User with this email or phone already exists")
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (u *userUsecase) DeleteUser(ctx context.Context, id uint) error {
	deleted, err := u.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return shared.NotFound("User with ID %d not found", id)
	}
	return nil
}

func (u *userUsecase) ensureEmailFree(ctx context.Context, email string) error {
	existing, err := u.repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if existing != nil {
		return shared.Conflict("User with this email already exists")
	}
	return nil
}

func (u *userUsecase) ensurePhoneFree(ctx context.Context, phone string) error {
	existing, err := u.repo.FindByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("find user by phone: %w", err)
	}
	if existing != nil {
		return shared.Conflict("User with this phone number already exists")
	}
	return nil
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	p := strings.TrimSpace(*phone)
	if p == "" {
		return nil
	}
	return &p
}
