package delivery

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"notification-relay/internal/device/domain"
	"notification-relay/internal/device/dto"
	"notification-relay/internal/device/usecase"
	"notification-relay/internal/shared"
)

type DeviceHandler struct {
	deviceUsecase usecase.DeviceUsecase
	log           zerolog.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceUsecase usecase.DeviceUsecase, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceUsecase: deviceUsecase,
		log:           log.With().Str("component", "DeviceHandler").Logger(),
	}
}

// RegisterDevice POST /devices/register
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	device, err := h.deviceUsecase.RegisterDevice(c.Request.Context(), &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	h.log.Info().Uint("device_id", device.ID).Str("platform", string(device.Platform)).Msg("Device registered")
	shared.Success(c, http.StatusOK, "Device registered successfully", device)
}

// CreateDevice POST /devices
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req dto.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	device, err := h.deviceUsecase.CreateDevice(c.Request.Context(), &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusCreated, "Device created successfully", device)
}

// ListDevices GET /devices?platform=ios&isActive=true&search=&limit=50&offset=0
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	page := shared.ParsePage(c)
	filter := domain.DeviceFilter{
		Platform: domain.Platform(c.Query("platform")),
		Search:   c.Query("search"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if v, err := strconv.ParseBool(c.Query("isActive")); err == nil {
		filter.IsActive = &v
	}
	if v, err := strconv.ParseUint(c.Query("userId"), 10, 64); err == nil && v > 0 {
		id := uint(v)
		filter.UserID = &id
	}

	devices, total, err := h.deviceUsecase.ListDevices(c.Request.Context(), filter)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", dto.DeviceListResponse{
		Devices: devices,
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

// GetDevice GET /devices/:id
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	device, err := h.deviceUsecase.GetDevice(c.Request.Context(), id)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", device)
}

// UpdateDevice PUT /devices/:id
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	var req dto.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	device, err := h.deviceUsecase.UpdateDevice(c.Request.Context(), id, &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "Device updated successfully", device)
}

// DeleteDevice DELETE /devices/:id
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	if err := h.deviceUsecase.DeleteDevice(c.Request.Context(), id); err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "Device deleted successfully", nil)
}

// ListUserDevices GET /devices/user/:userId
func (h *DeviceHandler) ListUserDevices(c *gin.Context) {
	userID, err := shared.ParseID(c, "userId")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	devices, err := h.deviceUsecase.ListUserDevices(c.Request.Context(), userID)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", devices)
}
