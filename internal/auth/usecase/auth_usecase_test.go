package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdto "notification-relay/internal/auth/dto"
	"notification-relay/internal/shared"
	userdomain "notification-relay/internal/user/domain"
	userrepo "notification-relay/internal/user/repository"
)

type stubUserRepo struct {
	userrepo.UserRepository
	users   map[uint]*userdomain.User
	touched uint
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*userdomain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uint) (*userdomain.User, error) {
	return r.users[id], nil
}

func (r *stubUserRepo) TouchLastLogin(_ context.Context, id uint, _ time.Time) error {
	r.touched = id
	return nil
}

func newStubRepo(t *testing.T) *stubUserRepo {
	t.Helper()
	hash, err := userrepo.HashPassword("correct-horse")
	require.NoError(t, err)
	return &stubUserRepo{users: map[uint]*userdomain.User{
		1: {ID: 1, Email: "ann@example.com", Password: &hash, IsActive: true},
		2: {ID: 2, Email: "off@example.com", Password: &hash, IsActive: false},
		3: {ID: 3, Email: "nopass@example.com", IsActive: true},
	}}
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	repo := newStubRepo(t)
	uc := NewAuthUsecase(repo, "secret", time.Hour)

	resp, err := uc.Login(context.Background(), &authdto.LoginRequest{Email: "ann@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, uint(1), repo.touched)
	assert.NotNil(t, resp.User.LastLoginAt)

	user, err := uc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
}

func TestLogin_Rejections(t *testing.T) {
	uc := NewAuthUsecase(newStubRepo(t), "secret", time.Hour)
	tests := []struct {
		name, email, password, msg string
	}{
		{"unknown email", "nobody@example.com", "x", "Invalid email or password"},
		{"wrong password", "ann@example.com", "wrong", "Invalid email or password"},
		{"inactive", "off@example.com", "correct-horse", "User account is inactive"},
		{"no password", "nopass@example.com", "x", "Password not set for this user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Login(context.Background(), &authdto.LoginRequest{Email: tt.email, Password: tt.password})
			assert.ErrorIs(t, err, shared.ErrAuth)
			assert.Equal(t, tt.msg, shared.PublicMessage(err))
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	repo := newStubRepo(t)
	uc := NewAuthUsecase(repo, "secret", time.Minute).(*authUsecase)
	issued := time.Now().Add(-time.Hour)
	uc.now = func() time.Time { return issued }

	resp, err := uc.Login(context.Background(), &authdto.LoginRequest{Email: "ann@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	uc.now = time.Now
	_, err = uc.ValidateToken(context.Background(), resp.Token)
	assert.ErrorIs(t, err, shared.ErrAuth)
	assert.Equal(t, "Token expired", shared.PublicMessage(err))
}

func TestValidateToken_WrongSecretOrAlgorithm(t *testing.T) {
	repo := newStubRepo(t)
	uc := NewAuthUsecase(repo, "secret", time.Hour)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = uc.ValidateToken(context.Background(), forged)
	assert.ErrorIs(t, err, shared.ErrAuth)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = uc.ValidateToken(context.Background(), none)
	assert.ErrorIs(t, err, shared.ErrAuth)
}
