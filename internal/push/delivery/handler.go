package delivery

import (
	"net/http"
	"time"

	"mailtask-backend/internal/push/domain"
	"mailtask-backend/internal/push/repository"

	"github.com/gin-gonic/gin"
)

// PushHandler handles push subscription registration requests
type PushHandler struct {
	subscriptionRepo repository.SubscriptionRepository
	fcmTokenRepo     repository.FCMTokenRepository
}

// NewPushHandler creates a new PushHandler
func NewPushHandler(subscriptionRepo repository.SubscriptionRepository, fcmTokenRepo repository.FCMTokenRepository) *PushHandler {
	return &PushHandler{
		subscriptionRepo: subscriptionRepo,
		fcmTokenRepo:     fcmTokenRepo,
	}
}

// SubscribeRequest mirrors the browser PushSubscription JSON shape
type SubscribeRequest struct {
	Endpoint       string `json:"endpoint" binding:"required"`
	ExpirationTime *int64 `json:"expirationTime"`
	Keys           struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// Subscribe registers a Web Push endpoint for the authenticated user
// POST /api/push/subscriptions
func (h *PushHandler) Subscribe(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subscription := &domain.PushSubscription{
		TenantID: tenantID,
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if req.ExpirationTime != nil {
		expires := time.UnixMilli(*req.ExpirationTime)
		subscription.ExpiresAt = &expires
	}

	if err := h.subscriptionRepo.Save(subscription); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": subscription.ID})
}

// Unsubscribe removes a Web Push endpoint
// DELETE /api/push/subscriptions
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.subscriptionRepo.Delete(domain.SubscriptionID(req.Endpoint)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed"})
}

// RegisterFCMToken stores a Firebase device token for the user
// POST /api/push/fcm
func (h *PushHandler) RegisterFCMToken(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")

	var req struct {
		Token      string `json:"token" binding:"required"`
		DeviceInfo string `json:"device_info"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.fcmTokenRepo.SaveToken(tenantID, userID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Token registered"})
}

// UnregisterFCMToken removes a Firebase device token
// DELETE /api/push/fcm/:token
func (h *PushHandler) UnregisterFCMToken(c *gin.Context) {
	token := c.Param("token")
	if err := h.fcmTokenRepo.DeleteToken(token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token removed"})
}
