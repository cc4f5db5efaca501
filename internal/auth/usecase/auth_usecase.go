package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	authdto "notification-relay/internal/auth/dto"
	"notification-relay/internal/shared"
	userdomain "notification-relay/internal/user/domain"
	userrepo "notification-relay/internal/user/repository"
)

// AuthUsecase issues and validates login tokens.
type AuthUsecase interface {
	Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (*userdomain.User, error)
}

// Claims carried by access tokens.
type Claims struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo userrepo.UserRepository
	secret   []byte
	expiry   time.Duration
	now      func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo userrepo.UserRepository, secret string, expiry time.Duration) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		secret:   []byte(secret),
		expiry:   expiry,
		now:      time.Now,
	}
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, shared.Validation("email and password are required")
	}

	user, err := u.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, shared.Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return nil, shared.Unauthorized("User account is inactive")
	}
	if user.Password == nil || *user.Password == "" {
		return nil, shared.Unauthorized("Password not set for this user")
	}
	if !userrepo.CheckPasswordHash(req.Password, *user.Password) {
		return nil, shared.Unauthorized("Invalid email or password")
	}

	now := u.now()
	if err := u.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LastLoginAt = &now

	expiresAt := now.Add(u.expiry)
	token, err := u.generateAccessToken(user, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &authdto.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		User:      user,
	}, nil
}

func (u *authUsecase) generateAccessToken(user *userdomain.User, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *authUsecase) ValidateToken(ctx context.Context, tokenString string) (*userdomain.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))

	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, shared.Unauthorized("Token expired")
		}
		return nil, shared.Unauthorized("Invalid token")
	}

	user, err := u.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, shared.Unauthorized("Invalid token")
	}
	return user, nil
}
