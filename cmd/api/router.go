package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authDelivery "mailtask-backend/internal/auth/delivery"
	pushDelivery "mailtask-backend/internal/push/delivery"
	syncDelivery "mailtask-backend/internal/sync/delivery"
	taskDelivery "mailtask-backend/internal/task/delivery"
	"mailtask-backend/pkg/config"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, syncHandler *syncDelivery.SyncHandler, pushHandler *pushDelivery.PushHandler, taskHandler *taskDelivery.TaskHandler) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Machine-to-machine routes: shared-secret auth inside the handlers
		api.POST("/webhook/mailbox", syncHandler.HandleWebhook)
		api.POST("/sync/run", syncHandler.HandleSyncTrigger)

		// Push subscription routes (protected)
		push := api.Group("/push")
		push.Use(authDelivery.AuthMiddleware(cfg.JWTSecret))
		{
			push.POST("/subscriptions", pushHandler.Subscribe)
			push.DELETE("/subscriptions", pushHandler.Unsubscribe)
			push.POST("/fcm", pushHandler.RegisterFCMToken)
			push.DELETE("/fcm/:token", pushHandler.UnregisterFCMToken)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(authDelivery.AuthMiddleware(cfg.JWTSecret))
		{
			tasks.GET("", taskHandler.GetTasks)
			tasks.GET("/:id", taskHandler.GetTaskByID)
			tasks.GET("/:id/timeline", taskHandler.GetTaskTimeline)
			tasks.PUT("/:id", taskHandler.UpdateTask)
			tasks.PATCH("/:id/status", taskHandler.UpdateTaskStatus)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
		}
	}
}
