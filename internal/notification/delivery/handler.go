package delivery

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"notification-relay/internal/notification/domain"
	"notification-relay/internal/notification/dto"
	"notification-relay/internal/notification/usecase"
	"notification-relay/internal/shared"
	"notification-relay/pkg/fcm"
)

type topicCall func(ctx context.Context, topic string, deviceIDs []uint) (*fcm.TopicResult, error)

type NotificationHandler struct {
	notificationUsecase usecase.NotificationUsecase
	log                 zerolog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationUsecase usecase.NotificationUsecase, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationUsecase: notificationUsecase,
		log:                 log.With().Str("component", "NotificationHandler").Logger(),
	}
}

// CreateNotification POST /create-notification
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req dto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	n, err := h.notificationUsecase.CreateAndQueue(c.Request.Context(), &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusCreated, "Notification created and queued successfully", n)
}

// SendToAll POST /notifications/all
func (h *NotificationHandler) SendToAll(c *gin.Context) {
	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	result, err := h.notificationUsecase.DispatchToAll(c.Request.Context(), &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, queuedMessage(result), result)
}

// SendToUser POST /notifications/user/:userId
func (h *NotificationHandler) SendToUser(c *gin.Context) {
	userID, err := shared.ParseID(c, "userId")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	result, err := h.notificationUsecase.DispatchToUser(c.Request.Context(), userID, &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, queuedMessage(result), result)
}

// GetNotification GET /notifications/:id
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	n, err := h.notificationUsecase.GetNotification(c.Request.Context(), id)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", n)
}

// MarkRead PATCH /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := shared.ParseID(c, "id")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	n, err := h.notificationUsecase.MarkNotificationRead(c.Request.Context(), id)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "Notification marked as read", n)
}

// ListUserNotifications GET /notifications/user/:userId?status=&limit=50&offset=0
func (h *NotificationHandler) ListUserNotifications(c *gin.Context) {
	userID, err := shared.ParseID(c, "userId")
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}

	page := shared.ParsePage(c)
	items, total, err := h.notificationUsecase.ListUserNotifications(c.Request.Context(), domain.NotificationFilter{
		UserID: userID,
		Status: domain.Status(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", dto.NotificationListResponse{
		Notifications: items,
		Total:         total,
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
}

// SendToTopic POST /notifications/topic/:topic
func (h *NotificationHandler) SendToTopic(c *gin.Context) {
	topic := c.Param("topic")

	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	id, err := h.notificationUsecase.SendToTopic(c.Request.Context(), topic, &req)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "Topic notification sent", dto.TopicSendResponse{Topic: topic, MessageID: id})
}

// SubscribeToTopic POST /topics/:topic/subscribe
func (h *NotificationHandler) SubscribeToTopic(c *gin.Context) {
	h.manageTopic(c, h.notificationUsecase.SubscribeDevicesToTopic)
}

// UnsubscribeFromTopic POST /topics/:topic/unsubscribe
func (h *NotificationHandler) UnsubscribeFromTopic(c *gin.Context) {
	h.manageTopic(c, h.notificationUsecase.UnsubscribeDevicesFromTopic)
}

func (h *NotificationHandler) manageTopic(c *gin.Context, call topicCall) {
	var req dto.TopicDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.Fail(c, h.log, shared.Validation("%s", err.Error()))
		return
	}

	result, err := call(c.Request.Context(), c.Param("topic"), req.DeviceIDs)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", result)
}

// ListFcmJobs GET /fcm-jobs?deviceId=&messageId=&limit=50&offset=0
func (h *NotificationHandler) ListFcmJobs(c *gin.Context) {
	page := shared.ParsePage(c)
	filter := domain.FcmJobFilter{
		MessageID: c.Query("messageId"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if raw := c.Query("deviceId"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			shared.Fail(c, h.log, shared.Validation("Invalid deviceId"))
			return
		}
		id := uint(v)
		filter.DeviceID = &id
	}

	jobs, total, err := h.notificationUsecase.ListFcmJobs(c.Request.Context(), filter)
	if err != nil {
		shared.Fail(c, h.log, err)
		return
	}
	shared.Success(c, http.StatusOK, "", dto.FcmJobListResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func queuedMessage(r *dto.DispatchResult) string {
	if r.Failed > 0 {
		return fmt.Sprintf("Notification queued to %d of %d device(s)", r.Queued, r.TotalDevices)
	}
	return fmt.Sprintf("Notification queued successfully to %d device(s)", r.Queued)
}
