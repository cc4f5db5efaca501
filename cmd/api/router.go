package api

import (
	"github.com/gin-gonic/gin"

	authDelivery "notification-relay/internal/auth/delivery"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	// Public
	r.GET("/health", h.Health)
	r.POST("/auth/login", h.authHandler.Login)
	r.POST("/users", h.userHandler.CreateUser)
	r.POST("/devices/register", h.deviceHandler.RegisterDevice)

	protected := r.Group("")
	if h.config.Auth.Enabled {
		protected.Use(authDelivery.AuthMiddleware(h.authUsecase))
	}

	users := protected.Group("/users")
	{
		users.GET("", h.userHandler.ListUsers)
		users.GET("/:id", h.userHandler.GetUser)
		users.PUT("/:id", h.userHandler.UpdateUser)
		users.DELETE("/:id", h.userHandler.DeleteUser)
	}

	devices := protected.Group("/devices")
	{
		devices.POST("", h.deviceHandler.CreateDevice)
		devices.GET("", h.deviceHandler.ListDevices)
		devices.GET("/user/:userId", h.deviceHandler.ListUserDevices)
		devices.GET("/:id", h.deviceHandler.GetDevice)
		devices.PUT("/:id", h.deviceHandler.UpdateDevice)
		devices.DELETE("/:id", h.deviceHandler.DeleteDevice)
	}

	protected.POST("/create-notification", h.notificationHandler.CreateNotification)

	notifications := protected.Group("/notifications")
	{
		notifications.POST("/all", h.notificationHandler.SendToAll)
		notifications.POST("/user/:userId", h.notificationHandler.SendToUser)
		notifications.GET("/user/:userId", h.notificationHandler.ListUserNotifications)
		notifications.POST("/topic/:topic", h.notificationHandler.SendToTopic)
		notifications.GET("/:id", h.notificationHandler.GetNotification)
		notifications.PATCH("/:id/read", h.notificationHandler.MarkRead)
	}

	topics := protected.Group("/topics")
	{
		topics.POST("/:topic/subscribe", h.notificationHandler.SubscribeToTopic)
		topics.POST("/:topic/unsubscribe", h.notificationHandler.UnsubscribeFromTopic)
	}

	protected.GET("/fcm-jobs", h.notificationHandler.ListFcmJobs)
}
