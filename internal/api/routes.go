package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RegisterRoutes mounts the trigger, health and admin endpoints on engine.
// Trigger routes require triggerToken; global middleware is the caller's concern.
func RegisterRoutes(engine *gin.Engine, handlers *Handlers, adminHandlers *AdminHandlers, verifier TokenVerifier, triggerToken string, logger *logrus.Logger) {
	engine.GET("/healthz", handlers.Health)

	notify := engine.Group("/api/notify")
	notify.Use(TriggerTokenMiddleware(triggerToken, logger))
	{
		notify.POST("/orders", handlers.NotifyOrder)
		notify.POST("/service-requests", handlers.NotifyServiceRequest)
	}

	admin := engine.Group("/api/admin")
	admin.POST("/login", adminHandlers.Login)

	protected := admin.Group("")
	protected.Use(AuthMiddleware(verifier, logger))
	{
		protected.GET("/notifications", adminHandlers.ListNotifications)
		protected.GET("/notifications/stats", adminHandlers.NotificationStats)
		protected.GET("/notifications/:id", adminHandlers.GetNotification)
		protected.POST("/notifications/test", adminHandlers.SendTestNotification)
	}
}
