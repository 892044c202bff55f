package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	accountdomain "mailtask-backend/internal/account/domain"
	"mailtask-backend/internal/metrics"
	"mailtask-backend/internal/sync/usecase"
)

// gmailNotification is the Gmail change event payload carried in a
// Pub/Sub message body.
type gmailNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// Listener pulls mailbox change notifications from a Pub/Sub
// subscription and routes each one into a sync. It is the pull-mode
// sibling of the HTTP webhook receiver; deployments use one or the
// other depending on whether they are reachable from outside.
type Listener struct {
	client      *pubsub.Client
	syncUsecase usecase.SyncUsecase
	topicName   string
	subName     string
}

func NewListener(projectID, topicName, credentialsFile string, syncUsecase usecase.SyncUsecase) (*Listener, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Listener{
		client:      client,
		syncUsecase: syncUsecase,
		topicName:   topicName,
		subName:     topicName + "-sub", // Convention: topic-sub
	}, nil
}

// Start blocks pulling messages until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting listener on topic %s, subscription %s", l.topicName, l.subName)

	sub := l.client.Subscription(l.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := l.client.Topic(l.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", l.topicName)
			return
		}

		sub, err = l.client.CreateSubscription(ctx, l.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", l.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		l.handleMessage(ctx, msg)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Receive stopped: %v", err)
	}
}

// handleMessage always acks. A notification is only a hint that the
// mailbox changed; anything it would have triggered is re-derived by
// the next sync, so redelivery buys nothing.
func (l *Listener) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification gmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil || notification.EmailAddress == "" {
		log.Printf("[PubSub] Unrecognized message payload: %v", err)
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		return
	}

	log.Printf("[PubSub] Change notification for %s (historyId %s)", notification.EmailAddress, notification.HistoryID)

	found, result, err := l.syncUsecase.SyncByProviderEmail(
		ctx,
		accountdomain.ProviderGmail,
		notification.EmailAddress,
		notification.HistoryID.String(),
	)
	switch {
	case err != nil:
		log.Printf("[PubSub] Sync failed for %s: %v", notification.EmailAddress, err)
		metrics.WebhooksReceived.WithLabelValues("sync_error").Inc()
	case !found:
		log.Printf("[PubSub] No account connected for %s, ignoring", notification.EmailAddress)
		metrics.WebhooksReceived.WithLabelValues("unknown_account").Inc()
	default:
		log.Printf("[PubSub] Synced %s: processed=%d skipped=%d", notification.EmailAddress, result.Processed, result.Skipped)
		metrics.WebhooksReceived.WithLabelValues("ok").Inc()
	}
}

// Close releases the Pub/Sub client.
func (l *Listener) Close() error {
	return l.client.Close()
}
