package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	accountdomain "mailtask-backend/internal/account/domain"
	accountrepo "mailtask-backend/internal/account/repository"
	"mailtask-backend/internal/apperr"
	"mailtask-backend/internal/classify"
	messagedomain "mailtask-backend/internal/message/domain"
	messagerepo "mailtask-backend/internal/message/repository"
	"mailtask-backend/internal/metrics"
	taskdomain "mailtask-backend/internal/task/domain"
	"mailtask-backend/pkg/vault"
)

// watchRenewalWindow: SyncAll re-arms provider watches expiring within
// this window so change notifications keep flowing.
const watchRenewalWindow = 24 * time.Hour

// maxConcurrentAccountSyncs bounds SyncAll fan-out. Accounts are fully
// independent; the per-account claim serializes each one.
const maxConcurrentAccountSyncs = 5

// syncUsecase implements SyncUsecase
type syncUsecase struct {
	accountRepo accountrepo.AccountRepository
	messageRepo messagerepo.MessageRepository
	taskCreator TaskCreator
	notifier    Notifier
	vault       *vault.Vault
	providers   map[accountdomain.Provider]MailProvider

	pubsubTopic        string
	defaultMaxMessages int
	syncTimeout        time.Duration
}

// NewSyncUsecase creates the per-account sync orchestrator.
func NewSyncUsecase(
	accountRepo accountrepo.AccountRepository,
	messageRepo messagerepo.MessageRepository,
	taskCreator TaskCreator,
	notifier Notifier,
	v *vault.Vault,
	providers map[accountdomain.Provider]MailProvider,
	pubsubTopic string,
	defaultMaxMessages int,
	syncTimeout time.Duration,
) SyncUsecase {
	return &syncUsecase{
		accountRepo:        accountRepo,
		messageRepo:        messageRepo,
		taskCreator:        taskCreator,
		notifier:           notifier,
		vault:              v,
		providers:          providers,
		pubsubTopic:        pubsubTopic,
		defaultMaxMessages: defaultMaxMessages,
		syncTimeout:        syncTimeout,
	}
}

func (u *syncUsecase) Sync(ctx context.Context, tenantID, accountID string, maxMessages int) (*SyncResult, error) {
	account, err := u.accountRepo.FindByID(tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperr.Wrapf(apperr.KindValidation, "account %s not found", accountID)
	}
	if account.Status == accountdomain.StatusDisabled {
		log.Printf("[Sync] Account %s is disabled, skipping", accountID)
		return &SyncResult{}, nil
	}

	// Serialize per account: a second concurrent sync loses the claim
	// and simply returns. Its messages are re-observed next run and
	// absorbed by the message store.
	claimed, err := u.accountRepo.ClaimSync(tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Printf("[Sync] Account %s already syncing, skipping", accountID)
		return &SyncResult{}, nil
	}

	releaseStatus := accountdomain.StatusActive
	defer func() {
		if err := u.accountRepo.ReleaseSync(tenantID, accountID, releaseStatus); err != nil {
			log.Printf("[Sync] Error releasing account %s: %v", accountID, err)
		}
	}()

	if maxMessages <= 0 {
		maxMessages = u.defaultMaxMessages
	}
	ctx, cancel := context.WithTimeout(ctx, u.syncTimeout)
	defer cancel()

	result, err := u.runSync(ctx, account, maxMessages)
	switch {
	case err == nil:
		metrics.SyncRuns.WithLabelValues("ok").Inc()
	case apperr.IsKind(err, apperr.KindCredential):
		// A broken credential is not retryable; park the account in
		// error until an operator re-connects it.
		releaseStatus = accountdomain.StatusError
		metrics.SyncRuns.WithLabelValues("credential_error").Inc()
	default:
		metrics.SyncRuns.WithLabelValues("provider_error").Inc()
	}
	return result, err
}

func (u *syncUsecase) runSync(ctx context.Context, account *accountdomain.Account, maxMessages int) (*SyncResult, error) {
	result := &SyncResult{}

	creds, err := u.decryptCredentials(account)
	if err != nil {
		log.Printf("[Sync] Credential failure for account %s: %v", account.ID, err)
		return result, err
	}

	provider, ok := u.providers[account.Provider]
	if !ok {
		return result, apperr.Wrapf(apperr.KindProvider, "no client for provider %q", account.Provider)
	}

	startCursor := account.Cursor
	ids, newCursor, err := provider.ListMessageIDs(ctx, creds, startCursor, maxMessages)
	if err != nil {
		return result, apperr.Wrap(apperr.KindProvider, err)
	}

	for _, id := range ids {
		meta, err := provider.FetchMeta(ctx, creds, id)
		if err != nil {
			// Losing metadata here would lose the message for good if
			// the cursor advanced past it; abort and retry from the
			// same cursor instead.
			return result, apperr.Wrapf(apperr.KindProvider, "fetch %s: %v", id, err)
		}

		created, err := u.storeMessage(account, meta)
		if err != nil {
			// The message never landed in the store; the cursor must
			// not move past it. Abort and retry the batch.
			return result, fmt.Errorf("store %s: %v", id, err)
		}
		if !created {
			result.Skipped++
			metrics.MessagesSkipped.Inc()
			continue
		}

		if err := u.deriveAndNotify(ctx, account, meta); err != nil {
			// The message itself is stored; only its task pipeline
			// failed. Skipping keeps the batch moving.
			log.Printf("[Sync] Skipping message %s on account %s: %v", id, account.ID, err)
			result.Skipped++
			metrics.MessagesSkipped.Inc()
			continue
		}
		result.Processed++
		metrics.MessagesProcessed.Inc()
	}

	if newCursor != "" && newCursor != startCursor {
		advanced, err := u.accountRepo.AdvanceCursor(account.TenantID, account.ID, startCursor, newCursor)
		if err != nil {
			return result, err
		}
		if !advanced {
			// Another sync advanced the cursor first; our duplicates
			// were already absorbed above.
			log.Printf("[Sync] Cursor for account %s moved concurrently, not overwriting", account.ID)
		}
	}

	log.Printf("[Sync] Account %s: processed=%d skipped=%d", account.ID, result.Processed, result.Skipped)
	return result, nil
}

// storeMessage classifies and inserts one message. Returns false when
// the message was already ingested; the duplicate triggers no further
// side effects.
func (u *syncUsecase) storeMessage(account *accountdomain.Account, meta *MessageMeta) (bool, error) {
	category, needsAction := classify.Classify(meta.Subject, meta.Sender, meta.Snippet)

	message := &messagedomain.Message{
		TenantID:          account.TenantID,
		Provider:          account.Provider,
		ProviderMessageID: meta.ProviderMessageID,
		AccountID:         account.ID,
		Sender:            meta.Sender,
		Subject:           meta.Subject,
		Snippet:           meta.Snippet,
		ReceivedAt:        meta.ReceivedAt,
		Category:          category,
		NeedsAction:       needsAction,
		Direction:         meta.Direction,
	}

	return u.messageRepo.CreateIfAbsent(message)
}

// deriveAndNotify runs a freshly stored message through derive ->
// task -> link -> notify.
func (u *syncUsecase) deriveAndNotify(ctx context.Context, account *accountdomain.Account, meta *MessageMeta) error {
	draft := taskdomain.DeriveDraft(meta.Subject, meta.Snippet)
	task, err := u.taskCreator.CreateFromDraft(account.TenantID, account.UserID, draft)
	if err != nil {
		return err
	}

	key := messagedomain.Key{Provider: account.Provider, ProviderMessageID: meta.ProviderMessageID}
	if err := u.messageRepo.LinkToTask(account.TenantID, key, task.ID, draft.Summary, meta.Direction, meta.ReceivedAt); err != nil {
		return err
	}

	// Push is best-effort; endpoint failures never fail the message.
	results := u.notifier.Dispatch(ctx, account.TenantID, account.UserID, task)
	for _, r := range results {
		if r.Err != nil {
			metrics.PushDeliveries.WithLabelValues("failed").Inc()
		} else {
			metrics.PushDeliveries.WithLabelValues("ok").Inc()
		}
	}

	return nil
}

func (u *syncUsecase) decryptCredentials(account *accountdomain.Account) (Credentials, error) {
	accessToken, err := u.vault.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return Credentials{}, err
	}

	refreshToken := ""
	if account.EncryptedRefreshToken != "" {
		refreshToken, err = u.vault.Decrypt(account.EncryptedRefreshToken)
		if err != nil {
			return Credentials{}, err
		}
	}

	return Credentials{
		Email:        account.Email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IMAPHost:     account.IMAPHost,
		OnTokenRefresh: func(newAccess, newRefresh string) error {
			encryptedAccess, err := u.vault.Encrypt(newAccess)
			if err != nil {
				return err
			}
			account.EncryptedAccessToken = encryptedAccess
			if newRefresh != "" {
				encryptedRefresh, err := u.vault.Encrypt(newRefresh)
				if err != nil {
					return err
				}
				account.EncryptedRefreshToken = encryptedRefresh
			}
			return u.accountRepo.Update(account)
		},
	}, nil
}

func (u *syncUsecase) SyncByProviderEmail(ctx context.Context, provider accountdomain.Provider, email, cursorHint string) (bool, *SyncResult, error) {
	account, err := u.accountRepo.FindByProviderEmail(provider, email)
	if err != nil {
		return false, nil, err
	}
	if account == nil {
		return false, nil, nil
	}

	// Bootstrap: a fresh account has no cursor yet; the notification's
	// hint tells us where the mailbox currently stands.
	if account.Cursor == "" && cursorHint != "" {
		if err := u.accountRepo.SeedCursorIfEmpty(account.TenantID, account.ID, cursorHint); err != nil {
			return true, nil, err
		}
	}

	result, err := u.Sync(ctx, account.TenantID, account.ID, 0)
	return true, result, err
}

func (u *syncUsecase) SyncAll(ctx context.Context, maxSources int) (*SyncResult, error) {
	accounts, err := u.accountRepo.ListEligible(maxSources)
	if err != nil {
		return nil, err
	}

	total := &SyncResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrentAccountSyncs)

	for _, account := range accounts {
		wg.Add(1)
		go func(account *accountdomain.Account) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			result, err := u.Sync(ctx, account.TenantID, account.ID, 0)
			if err != nil {
				log.Printf("[Sync] Batched sync failed for account %s: %v", account.ID, err)
			}
			if result != nil {
				mu.Lock()
				total.Processed += result.Processed
				total.Skipped += result.Skipped
				mu.Unlock()
			}

			u.maybeRenewWatch(ctx, account)
		}(account)
	}
	wg.Wait()

	log.Printf("[Sync] Batch complete: %d accounts, processed=%d skipped=%d", len(accounts), total.Processed, total.Skipped)
	return total, nil
}

// maybeRenewWatch re-arms the provider watch when it is missing or
// about to lapse. Failures only log: the periodic trigger still syncs
// the account even without change notifications.
func (u *syncUsecase) maybeRenewWatch(ctx context.Context, account *accountdomain.Account) {
	if u.pubsubTopic == "" {
		return
	}
	// Only Gmail has a push channel; IMAP accounts rely on the
	// periodic batch alone.
	if account.Provider != accountdomain.ProviderGmail {
		return
	}
	if account.WatchExpiresAt != nil && time.Until(*account.WatchExpiresAt) > watchRenewalWindow {
		return
	}

	provider, ok := u.providers[account.Provider]
	if !ok {
		return
	}

	creds, err := u.decryptCredentials(account)
	if err != nil {
		log.Printf("[Sync] Cannot renew watch for account %s: %v", account.ID, err)
		return
	}

	watch, err := provider.Watch(ctx, creds, u.pubsubTopic)
	if err != nil {
		log.Printf("[Sync] Watch renewal failed for account %s: %v", account.ID, err)
		return
	}

	expiresAt, err := accountdomain.ParseWatchExpiration(watch.Expiration)
	if err != nil {
		log.Printf("[Sync] Unusable watch expiration for account %s: %v", account.ID, err)
		return
	}

	if err := u.accountRepo.UpdateWatchExpiration(account.TenantID, account.ID, expiresAt); err != nil {
		log.Printf("[Sync] Error storing watch expiration for account %s: %v", account.ID, err)
	}
	if watch.Cursor != "" {
		if err := u.accountRepo.SeedCursorIfEmpty(account.TenantID, account.ID, watch.Cursor); err != nil {
			log.Printf("[Sync] Error seeding cursor for account %s: %v", account.ID, err)
		}
	}
	log.Printf("[Sync] Watch renewed for account %s until %s", account.ID, expiresAt.Format(time.RFC3339))
}
