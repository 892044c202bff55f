package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	pushdomain "mailtask-backend/internal/push/domain"
	pushrepo "mailtask-backend/internal/push/repository"
	taskdomain "mailtask-backend/internal/task/domain"
	"mailtask-backend/pkg/fcm"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// maxConcurrentSends bounds the fan-out so one user with many stale
// endpoints cannot monopolize the triggering request.
const maxConcurrentSends = 5

// Payload is the JSON body delivered to each push endpoint.
type Payload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
	TaskID string `json:"taskId"`
}

// Result captures the outcome of one endpoint delivery.
type Result struct {
	Endpoint string
	Err      error
}

// FCMSender is the slice of the FCM client the dispatcher needs.
type FCMSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.Notification) ([]string, error)
}

type webPushSendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Dispatcher delivers task notifications to every registered endpoint
// of a user. Delivery is best-effort: per-endpoint failures are logged
// and never surfaced to the caller.
type Dispatcher struct {
	subscriptionRepo pushrepo.SubscriptionRepository
	fcmTokenRepo     pushrepo.FCMTokenRepository
	fcmClient        FCMSender

	vapidPublicKey  string
	vapidPrivateKey string
	vapidSubject    string
	appBaseURL      string

	sendWebPush webPushSendFunc
}

// NewDispatcher creates a dispatcher. fcmClient may be nil when
// Firebase is not configured; VAPID keys may be empty when Web Push is
// not configured. Either way dispatch degrades to a no-op for that
// channel.
func NewDispatcher(
	subscriptionRepo pushrepo.SubscriptionRepository,
	fcmTokenRepo pushrepo.FCMTokenRepository,
	fcmClient FCMSender,
	vapidPublicKey, vapidPrivateKey, vapidSubject, appBaseURL string,
) *Dispatcher {
	return &Dispatcher{
		subscriptionRepo: subscriptionRepo,
		fcmTokenRepo:     fcmTokenRepo,
		fcmClient:        fcmClient,
		vapidPublicKey:   vapidPublicKey,
		vapidPrivateKey:  vapidPrivateKey,
		vapidSubject:     vapidSubject,
		appBaseURL:       appBaseURL,
		sendWebPush:      webpush.SendNotificationWithContext,
	}
}

// Dispatch sends a push for the derived task to all of the user's
// endpoints. Returns one Result per attempted endpoint; an empty slice
// means there was nothing to deliver, which is not a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, userID string, task *taskdomain.Task) []Result {
	payload := Payload{
		Title:  task.Title,
		Body:   task.Summary,
		URL:    fmt.Sprintf("%s/tasks/%s", d.appBaseURL, task.ID),
		TaskID: task.ID,
	}

	results := d.dispatchWebPush(ctx, tenantID, userID, payload)
	results = append(results, d.dispatchFCM(ctx, tenantID, userID, payload)...)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if len(results) > 0 {
		log.Printf("[Dispatch] Task %s: delivered to %d/%d endpoints for user %s", task.ID, len(results)-failed, len(results), userID)
	}
	return results
}

func (d *Dispatcher) dispatchWebPush(ctx context.Context, tenantID, userID string, payload Payload) []Result {
	if d.vapidPublicKey == "" || d.vapidPrivateKey == "" {
		return nil
	}

	subscriptions, err := d.subscriptionRepo.GetByUserID(tenantID, userID)
	if err != nil {
		log.Printf("[Dispatch] Error loading subscriptions for user %s: %v", userID, err)
		return nil
	}
	if len(subscriptions) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Dispatch] Error encoding payload: %v", err)
		return nil
	}

	results := make([]Result, len(subscriptions))
	semaphore := make(chan struct{}, maxConcurrentSends)
	var wg sync.WaitGroup

	for i, sub := range subscriptions {
		wg.Add(1)
		go func(i int, sub pushdomain.PushSubscription) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			results[i] = Result{Endpoint: sub.Endpoint, Err: d.sendToEndpoint(ctx, body, sub)}
		}(i, sub)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) sendToEndpoint(ctx context.Context, body []byte, sub pushdomain.PushSubscription) error {
	resp, err := d.sendWebPush(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      d.vapidSubject,
		VAPIDPublicKey:  d.vapidPublicKey,
		VAPIDPrivateKey: d.vapidPrivateKey,
		TTL:             60,
	})
	if err != nil {
		log.Printf("[Dispatch] Web push to %s failed: %v", sub.ID[:12], err)
		return err
	}
	defer resp.Body.Close()

	// Gone endpoints are pruned so the next dispatch skips them.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		log.Printf("[Dispatch] Endpoint %s is gone (status %d), removing subscription", sub.ID[:12], resp.StatusCode)
		if err := d.subscriptionRepo.Delete(sub.ID); err != nil {
			log.Printf("[Dispatch] Error removing subscription %s: %v", sub.ID[:12], err)
		}
		return fmt.Errorf("endpoint gone: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		log.Printf("[Dispatch] Web push to %s rejected with status %d", sub.ID[:12], resp.StatusCode)
		return fmt.Errorf("push endpoint rejected: status %d", resp.StatusCode)
	}

	return nil
}

func (d *Dispatcher) dispatchFCM(ctx context.Context, tenantID, userID string, payload Payload) []Result {
	if d.fcmClient == nil {
		return nil
	}

	tokens, err := d.fcmTokenRepo.GetTokensByUserID(tenantID, userID)
	if err != nil {
		log.Printf("[Dispatch] Error loading FCM tokens for user %s: %v", userID, err)
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	var tokenStrings []string
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := d.fcmClient.SendToDevices(ctx, tokenStrings, fcm.Notification{
		Title: payload.Title,
		Body:  payload.Body,
		URL:   payload.URL,
		Data: map[string]string{
			"type":   "task_created",
			"taskId": payload.TaskID,
		},
	})
	if err != nil {
		log.Printf("[Dispatch] FCM multicast for user %s failed: %v", userID, err)
		results := make([]Result, len(tokenStrings))
		for i, token := range tokenStrings {
			results[i] = Result{Endpoint: token, Err: err}
		}
		return results
	}

	// Cleanup failed tokens
	failed := make(map[string]bool, len(failedTokens))
	for _, token := range failedTokens {
		failed[token] = true
		if err := d.fcmTokenRepo.DeleteToken(token); err != nil {
			log.Printf("[Dispatch] Error deleting stale FCM token: %v", err)
		}
	}

	results := make([]Result, len(tokenStrings))
	for i, token := range tokenStrings {
		results[i] = Result{Endpoint: token}
		if failed[token] {
			results[i].Err = fmt.Errorf("fcm token rejected")
		}
	}
	return results
}
