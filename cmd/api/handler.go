package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"

	authDelivery "notification-relay/internal/auth/delivery"
	authUsecase "notification-relay/internal/auth/usecase"
	deviceDelivery "notification-relay/internal/device/delivery"
	deviceUsecase "notification-relay/internal/device/usecase"
	notificationDelivery "notification-relay/internal/notification/delivery"
	notificationUsecase "notification-relay/internal/notification/usecase"
	userDelivery "notification-relay/internal/user/delivery"
	userUsecase "notification-relay/internal/user/usecase"
	"notification-relay/pkg/config"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Usecases struct {
	Auth         authUsecase.AuthUsecase
	User         userUsecase.UserUsecase
	Device       deviceUsecase.DeviceUsecase
	Notification notificationUsecase.NotificationUsecase
}

type Handler struct {
	authUsecase         authUsecase.AuthUsecase
	authHandler         *authDelivery.AuthHandler
	userHandler         *userDelivery.UserHandler
	deviceHandler       *deviceDelivery.DeviceHandler
	notificationHandler *notificationDelivery.NotificationHandler
	health              HealthCheck
	config              *config.Config
	log                 zerolog.Logger
}

// NewHandler creates a new HTTP handler wiring every feature handler
func NewHandler(uc Usecases, health HealthCheck, cfg *config.Config, log zerolog.Logger) *Handler {
	// Numbers in notification data stay exact instead of becoming float64.
	binding.EnableDecoderUseNumber = true

	return &Handler{
		authUsecase:         uc.Auth,
		authHandler:         authDelivery.NewAuthHandler(uc.Auth, log),
		userHandler:         userDelivery.NewUserHandler(uc.User, log),
		deviceHandler:       deviceDelivery.NewDeviceHandler(uc.Device, log),
		notificationHandler: notificationDelivery.NewNotificationHandler(uc.Notification, log),
		health:              health,
		config:              cfg,
		log:                 log.With().Str("component", "HTTP").Logger(),
	}
}

// Engine builds the gin engine with middleware and routes.
func (h *Handler) Engine() *gin.Engine {
	if h.config.GinMode != "" {
		gin.SetMode(h.config.GinMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.log))
	if gin.Mode() == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(corsMiddleware(h.config.CORSAllowedOrigins))

	SetupRoutes(r, h)
	return r
}

// Server returns an http.Server for addr; the caller owns its lifecycle.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok", "runMode": h.config.RunMode}
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Service unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}
