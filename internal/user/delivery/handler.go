package delivery

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"notification-relay/internal/shared"
	"notification-relay/internal/user/domain"
	"notification-relay/internal/user/dto"
	"notification-relay/internal/user/usecase"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userUsecase usecase.UserUsecase
	log         zerolog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userUsecase usecase.UserUsecase, log zerolog.Logger) *UserHandler {
	return &UserHandler{
		userUsecase: userUsecase,
		log:         log.With().Str("component", "UserHandler").Logger(),
	}
}

// CreateUser POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	user, err := h.userUsecase.CreateUser(c.Request.Context(), &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusCreated, "User created successfully", user)
}

// ListUsers GET /users?limit=50&offset=0&isActive=true&search=
func (h *UserHandler) ListUsers(c *gin.Context) {
	page := shared.ParsePage(c)
	filter := domain.UserFilter{
		Search: c.Query("search"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if v, err := strconv.ParseBool(c.Query("isActive")); err == nil {
		filter.IsActive = &v
	}

	users, total, err := h.userUsecase.ListUsers(c.Request.Context(), filter)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", dto.UserListResponse{
		Users:  users,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// GetUser GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	user, err := h.userUsecase.GetUser(c.Request.Context(), id)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", user)
}

// UpdateUser PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	user, err := h.userUsecase.UpdateUser(c.Request.Context(), id, &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "User updated successfully", user)
}

// DeleteUser DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	if err := h.userUsecase.DeleteUser(c.Request.Context(), id); err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "User deleted successfully", nil)
}
