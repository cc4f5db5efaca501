package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDto "notification-relay/internal/auth/dto"
	authUsecase "notification-relay/internal/auth/usecase"
	devicedomain "notification-relay/internal/device/domain"
	deviceDto "notification-relay/internal/device/dto"
	deviceUsecase "notification-relay/internal/device/usecase"
	notificationUsecase "notification-relay/internal/notification/usecase"
	"notification-relay/internal/shared"
	userdomain "notification-relay/internal/user/domain"
	userUsecase "notification-relay/internal/user/usecase"
	"notification-relay/pkg/config"
)

type stubAuth struct{}

func (stubAuth) Login(context.Context, *authDto.LoginRequest) (*authDto.TokenResponse, error) {
	return nil, shared.Unauthorized("Invalid email or password")
}

func (stubAuth) ValidateToken(_ context.Context, token string) (*userdomain.User, error) {
	if token == "good" {
		return &userdomain.User{ID: 1}, nil
	}
	return nil, shared.Unauthorized("Invalid token")
}

type stubUsers struct{ userUsecase.UserUsecase }

func (stubUsers) ListUsers(context.Context, userdomain.UserFilter) ([]*userdomain.User, int64, error) {
	return []*userdomain.User{}, 0, nil
}

type stubDevices struct {
	deviceUsecase.DeviceUsecase
	registered []string
}

func (s *stubDevices) RegisterDevice(_ context.Context, req *deviceDto.RegisterDeviceRequest) (*devicedomain.Device, error) {
	s.registered = append(s.registered, req.DeviceToken)
	return &devicedomain.Device{ID: 3, DeviceToken: req.DeviceToken, Platform: devicedomain.PlatformIOS, IsActive: true}, nil
}

func (s *stubDevices) GetDevice(context.Context, uint) (*devicedomain.Device, error) {
	return nil, shared.NotFound("Device not found")
}

type stubNotifications struct{ notificationUsecase.NotificationUsecase }

func newTestEngine(t *testing.T, authEnabled bool, health HealthCheck) (*gin.Engine, *stubDevices) {
	t.Helper()
	devices := &stubDevices{}
	cfg := &config.Config{
		GinMode:            gin.TestMode,
		RunMode:            config.RunModeAPI,
		CORSAllowedOrigins: []string{"https://app.example.com"},
		Auth:               config.AuthConfig{Enabled: authEnabled},
	}
	var auth authUsecase.AuthUsecase = stubAuth{}
	h := NewHandler(Usecases{
		Auth:         auth,
		User:         stubUsers{},
		Device:       devices,
		Notification: stubNotifications{},
	}, health, cfg, zerolog.Nop())
	return h.Engine(), devices
}

func serve(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestEngine(t, true, func(context.Context) error { return nil })

	w := serve(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok","runMode":"api"}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestHealth_DependencyDown(t *testing.T) {
	r, _ := newTestEngine(t, true, func(context.Context) error { return errors.New("db down") })

	w := serve(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Service unavailable"}`, w.Body.String())
}

func TestRegisterDevice_IsPublic(t *testing.T) {
	r, devices := newTestEngine(t, true, nil)

	w := serve(r, http.MethodPost, "/devices/register", `{"deviceToken":"tok-1","platform":"ios"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"message":"Device registered successfully"`)
	assert.Equal(t, []string{"tok-1"}, devices.registered)
}

func TestRegisterDevice_MissingToken(t *testing.T) {
	r, _ := newTestEngine(t, true, nil)

	w := serve(r, http.MethodPost, "/devices/register", `{"platform":"ios"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestProtectedRoutes(t *testing.T) {
	r, _ := newTestEngine(t, true, nil)

	w := serve(r, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/users", "", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/devices/7", "", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Device not found"}`, w.Body.String())
}

func TestProtectedRoutes_AuthDisabled(t *testing.T) {
	r, _ := newTestEngine(t, false, nil)

	w := serve(r, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	r, _ := newTestEngine(t, true, nil)

	w := serve(r, http.MethodOptions, "/devices/register", "", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/devices/register", "", map[string]string{
		"Origin":                        "https://evil.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	r, _ := newTestEngine(t, true, nil)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{headerRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(headerRequestID))
}
