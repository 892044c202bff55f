package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	pushdomain "mailtask-backend/internal/push/domain"
	taskdomain "mailtask-backend/internal/task/domain"
	"mailtask-backend/pkg/fcm"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriptionRepo struct {
	mu            sync.Mutex
	subscriptions []pushdomain.PushSubscription
	deleted       []string
}

func (f *fakeSubscriptionRepo) Save(sub *pushdomain.PushSubscription) error {
	f.subscriptions = append(f.subscriptions, *sub)
	return nil
}

func (f *fakeSubscriptionRepo) GetByUserID(tenantID, userID string) ([]pushdomain.PushSubscription, error) {
	return f.subscriptions, nil
}

func (f *fakeSubscriptionRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFCMTokenRepo struct {
	tokens  []pushdomain.FCMToken
	deleted []string
}

func (f *fakeFCMTokenRepo) SaveToken(tenantID, userID, token, deviceInfo string) error { return nil }
func (f *fakeFCMTokenRepo) GetTokensByUserID(tenantID, userID string) ([]pushdomain.FCMToken, error) {
	return f.tokens, nil
}
func (f *fakeFCMTokenRepo) DeleteToken(token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}
func (f *fakeFCMTokenRepo) DeleteTokensByUserID(tenantID, userID string) error { return nil }

type fakeFCMSender struct {
	calls  int
	failed []string
}

func (f *fakeFCMSender) SendToDevices(ctx context.Context, tokens []string, n fcm.Notification) ([]string, error) {
	f.calls++
	return f.failed, nil
}

func subscription(endpoint string) pushdomain.PushSubscription {
	return pushdomain.PushSubscription{
		ID:       pushdomain.SubscriptionID(endpoint),
		TenantID: "tenant-a",
		UserID:   "user-1",
		Endpoint: endpoint,
		P256dh:   "p256dh-key",
		Auth:     "auth-key",
	}
}

func stubResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func newTestDispatcher(subs *fakeSubscriptionRepo, fcmTokens *fakeFCMTokenRepo, sender FCMSender) *Dispatcher {
	return NewDispatcher(subs, fcmTokens, sender, "vapid-pub", "vapid-priv", "mailto:ops@example.com", "https://app.example.com")
}

func sampleTask() *taskdomain.Task {
	return &taskdomain.Task{
		ID:      "task-1",
		Title:   "Reply to the vendor",
		Summary: "Payment deadline approaching",
	}
}

func TestDispatchWithZeroTargetsIsNoop(t *testing.T) {
	subs := &fakeSubscriptionRepo{}
	tokens := &fakeFCMTokenRepo{}
	d := newTestDispatcher(subs, tokens, nil)

	networkCalls := 0
	d.sendWebPush = func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		networkCalls++
		return stubResponse(http.StatusCreated), nil
	}

	results := d.Dispatch(context.Background(), "tenant-a", "user-1", sampleTask())
	assert.Empty(t, results)
	assert.Zero(t, networkCalls)
}

func TestDispatchWithoutVAPIDKeysSkipsWebPush(t *testing.T) {
	subs := &fakeSubscriptionRepo{subscriptions: []pushdomain.PushSubscription{subscription("https://push.example/a")}}
	d := NewDispatcher(subs, &fakeFCMTokenRepo{}, nil, "", "", "", "https://app.example.com")

	networkCalls := 0
	d.sendWebPush = func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		networkCalls++
		return stubResponse(http.StatusCreated), nil
	}

	results := d.Dispatch(context.Background(), "tenant-a", "user-1", sampleTask())
	assert.Empty(t, results)
	assert.Zero(t, networkCalls)
}

func TestDispatchSendsPayloadToAllEndpoints(t *testing.T) {
	subs := &fakeSubscriptionRepo{subscriptions: []pushdomain.PushSubscription{
		subscription("https://push.example/a"),
		subscription("https://push.example/b"),
	}}
	d := newTestDispatcher(subs, &fakeFCMTokenRepo{}, nil)

	var mu sync.Mutex
	var payloads []Payload
	d.sendWebPush = func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		var p Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		return stubResponse(http.StatusCreated), nil
	}

	results := d.Dispatch(context.Background(), "tenant-a", "user-1", sampleTask())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	require.Len(t, payloads, 2)
	assert.Equal(t, "Reply to the vendor", payloads[0].Title)
	assert.Equal(t, "task-1", payloads[0].TaskID)
	assert.Contains(t, payloads[0].URL, "/tasks/task-1")
}

func TestDispatchOneFailureDoesNotAbortOthers(t *testing.T) {
	good := subscription("https://push.example/good")
	gone := subscription("https://push.example/gone")
	subs := &fakeSubscriptionRepo{subscriptions: []pushdomain.PushSubscription{gone, good}}
	d := newTestDispatcher(subs, &fakeFCMTokenRepo{}, nil)

	d.sendWebPush = func(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		if sub.Endpoint == gone.Endpoint {
			return stubResponse(http.StatusGone), nil
		}
		return stubResponse(http.StatusCreated), nil
	}

	results := d.Dispatch(context.Background(), "tenant-a", "user-1", sampleTask())
	require.Len(t, results, 2)

	outcomes := map[string]error{}
	for _, r := range results {
		outcomes[r.Endpoint] = r.Err
	}
	assert.Error(t, outcomes[gone.Endpoint])
	assert.NoError(t, outcomes[good.Endpoint])

	// The gone endpoint is pruned.
	assert.Equal(t, []string{gone.ID}, subs.deleted)
}

func TestDispatchFCMPrunesFailedTokens(t *testing.T) {
	tokens := &fakeFCMTokenRepo{tokens: []pushdomain.FCMToken{
		{Token: "token-live"},
		{Token: "token-stale"},
	}}
	sender := &fakeFCMSender{failed: []string{"token-stale"}}
	d := newTestDispatcher(&fakeSubscriptionRepo{}, tokens, sender)

	results := d.Dispatch(context.Background(), "tenant-a", "user-1", sampleTask())
	require.Len(t, results, 2)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{"token-stale"}, tokens.deleted)
}
