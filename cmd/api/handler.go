package api

import (
	"github.com/gin-gonic/gin"

	pushDelivery "mailtask-backend/internal/push/delivery"
	syncDelivery "mailtask-backend/internal/sync/delivery"
	taskDelivery "mailtask-backend/internal/task/delivery"
	"mailtask-backend/pkg/config"
)

type Handler struct {
	config      *config.Config
	syncHandler *syncDelivery.SyncHandler
	pushHandler *pushDelivery.PushHandler
	taskHandler *taskDelivery.TaskHandler
}

func NewHandler(cfg *config.Config, syncHandler *syncDelivery.SyncHandler, pushHandler *pushDelivery.PushHandler, taskHandler *taskDelivery.TaskHandler) *Handler {
	return &Handler{
		config:      cfg,
		syncHandler: syncHandler,
		pushHandler: pushHandler,
		taskHandler: taskHandler,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Webhook-Token, X-Sync-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.config, h.syncHandler, h.pushHandler, h.taskHandler)

	return r.Run(addr)
}
