package delivery

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	accountdomain "mailtask-backend/internal/account/domain"
	"mailtask-backend/internal/metrics"
	"mailtask-backend/internal/sync/usecase"
)

// pushEnvelope is the Pub/Sub push delivery wrapper. The interesting
// payload sits base64-encoded inside message.data.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// changeNotification is the decoded Gmail change event. historyId
// arrives as a number from Gmail but we never parse it; it is an
// opaque cursor hint.
type changeNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// SyncHandler exposes the webhook receiver and the manual sync trigger.
type SyncHandler struct {
	syncUsecase      usecase.SyncUsecase
	webhookToken     string
	syncTriggerToken string
}

func NewSyncHandler(syncUsecase usecase.SyncUsecase, webhookToken, syncTriggerToken string) *SyncHandler {
	return &SyncHandler{
		syncUsecase:      syncUsecase,
		webhookToken:     webhookToken,
		syncTriggerToken: syncTriggerToken,
	}
}

// HandleWebhook ingests a mailbox change notification. Only a bad
// shared secret is rejected; every other outcome acknowledges with 200
// so the broker stops redelivering. Processing problems are recovered
// by the next sync, never by webhook retries.
func (h *SyncHandler) HandleWebhook(c *gin.Context) {
	if !tokenMatches(c.GetHeader("X-Webhook-Token"), h.webhookToken) {
		metrics.WebhooksReceived.WithLabelValues("unauthorized").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Printf("[Webhook] Malformed envelope: %v", err)
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		log.Printf("[Webhook] Undecodable message data: %v", err)
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var notification changeNotification
	if err := json.Unmarshal(data, &notification); err != nil || notification.EmailAddress == "" {
		log.Printf("[Webhook] Unrecognized notification payload: %v", err)
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	log.Printf("[Webhook] Change notification for %s (message %s)", notification.EmailAddress, envelope.Message.MessageID)

	found, _, err := h.syncUsecase.SyncByProviderEmail(
		c.Request.Context(),
		accountdomain.ProviderGmail,
		notification.EmailAddress,
		notification.HistoryID.String(),
	)
	switch {
	case err != nil:
		log.Printf("[Webhook] Sync failed for %s: %v", notification.EmailAddress, err)
		metrics.WebhooksReceived.WithLabelValues("sync_error").Inc()
	case !found:
		log.Printf("[Webhook] No account connected for %s, ignoring", notification.EmailAddress)
		metrics.WebhooksReceived.WithLabelValues("unknown_account").Inc()
	default:
		metrics.WebhooksReceived.WithLabelValues("ok").Inc()
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type triggerRequest struct {
	MaxSources int `json:"maxSources"`
}

// HandleSyncTrigger runs a batched sync across eligible accounts. Used
// by the cron-style caller and by operators.
func (h *SyncHandler) HandleSyncTrigger(c *gin.Context) {
	if !tokenMatches(c.GetHeader("X-Sync-Token"), h.syncTriggerToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	// An empty or malformed body means "use defaults".
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = triggerRequest{}
	}
	if req.MaxSources <= 0 {
		req.MaxSources = 20
	}

	result, err := h.syncUsecase.SyncAll(c.Request.Context(), req.MaxSources)
	if err != nil {
		log.Printf("[Sync] Batched sync failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "sync failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "processed": result.Processed, "skipped": result.Skipped})
}

// tokenMatches accepts everything when no token is configured; the
// secret is an optional deployment hardening, not a login.
func tokenMatches(got, want string) bool {
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
