package usecase

import (
	"context"
	"time"

	accountdomain "mailtask-backend/internal/account/domain"
	messagedomain "mailtask-backend/internal/message/domain"
	"mailtask-backend/internal/notification"
	taskdomain "mailtask-backend/internal/task/domain"
)

// MessageMeta is normalized message metadata across providers.
type MessageMeta struct {
	ProviderMessageID string
	Sender            string
	Subject           string
	Snippet           string
	ReceivedAt        time.Time
	Direction         messagedomain.Direction
}

// Credentials is the decrypted provider access material for one sync.
// OnTokenRefresh persists rotated tokens (re-encrypted) when the
// provider client refreshes them mid-call.
type Credentials struct {
	Email        string
	AccessToken  string
	RefreshToken string
	IMAPHost     string

	OnTokenRefresh func(accessToken, refreshToken string) error
}

// WatchResult is what a provider returns when (re)arming change
// notifications for a mailbox. Expiration is the provider's raw
// textual form (epoch milliseconds or RFC 3339); callers normalize it
// through accountdomain.ParseWatchExpiration.
type WatchResult struct {
	Cursor     string
	Expiration string
}

// MailProvider is the contract a mailbox backend must satisfy.
// The cursor is opaque to this core: it is compared for equality and
// round-tripped, never parsed.
type MailProvider interface {
	// ListMessageIDs returns ids of messages newer than cursor, in
	// provider order, plus the cursor covering the returned batch.
	ListMessageIDs(ctx context.Context, creds Credentials, cursor string, maxMessages int) (ids []string, newCursor string, err error)

	// FetchMeta retrieves metadata for one message.
	FetchMeta(ctx context.Context, creds Credentials, providerMessageID string) (*MessageMeta, error)

	// Watch (re)arms change notifications and returns the new expiration.
	Watch(ctx context.Context, creds Credentials, topic string) (*WatchResult, error)

	// Stop tears down change notifications.
	Stop(ctx context.Context, creds Credentials) error
}

// TaskCreator persists a derived task. Implemented by the task usecase.
type TaskCreator interface {
	CreateFromDraft(tenantID, userID string, draft taskdomain.Draft) (*taskdomain.Task, error)
}

// Notifier fans a derived task out to the user's push endpoints.
type Notifier interface {
	Dispatch(ctx context.Context, tenantID, userID string, task *taskdomain.Task) []notification.Result
}

// SyncResult aggregates counts for one or many account syncs.
type SyncResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// SyncUsecase drives per-account synchronization.
type SyncUsecase interface {
	// Sync runs one synchronization for an account. Zero maxMessages
	// applies the configured default cap.
	Sync(ctx context.Context, tenantID, accountID string, maxMessages int) (*SyncResult, error)

	// SyncByProviderEmail resolves a change notification to an account
	// and syncs it. found=false means the account is unknown on this
	// side, which callers acknowledge without error.
	SyncByProviderEmail(ctx context.Context, provider accountdomain.Provider, email, cursorHint string) (found bool, result *SyncResult, err error)

	// SyncAll runs Sync over eligible accounts with bounded concurrency
	// and renews provider watches that are about to expire.
	SyncAll(ctx context.Context, maxSources int) (*SyncResult, error)
}
