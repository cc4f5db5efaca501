package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	authdto "notification-relay/internal/auth/dto"
	"notification-relay/internal/auth/usecase"
	"notification-relay/internal/shared"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	log         zerolog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authUsecase usecase.AuthUsecase, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		log:         log.With().Str("component", "AuthHandler").Logger(),
	}
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	resp, err := h.authUsecase.Login(c.Request.Context(), &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "Login successful", resp)
}
