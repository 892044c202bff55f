package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "mailtask-backend/internal/account/domain"
	"mailtask-backend/internal/apperr"
	messagedomain "mailtask-backend/internal/message/domain"
	"mailtask-backend/internal/notification"
	taskdomain "mailtask-backend/internal/task/domain"
	"mailtask-backend/pkg/vault"
)

type fakeAccountRepo struct {
	accounts map[string]*accountdomain.Account

	claimDenied  bool
	releasedWith accountdomain.Status
	seededCursor string
}

func (r *fakeAccountRepo) Create(a *accountdomain.Account) error { r.accounts[a.ID] = a; return nil }

func (r *fakeAccountRepo) FindByID(tenantID, id string) (*accountdomain.Account, error) {
	a, ok := r.accounts[id]
	if !ok || a.TenantID != tenantID {
		return nil, nil
	}
	return a, nil
}

func (r *fakeAccountRepo) FindByProviderEmail(provider accountdomain.Provider, email string) (*accountdomain.Account, error) {
	for _, a := range r.accounts {
		if a.Provider == provider && a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListEligible(limit int) ([]*accountdomain.Account, error) {
	var out []*accountdomain.Account
	for _, a := range r.accounts {
		if a.Status == accountdomain.StatusActive {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) Update(a *accountdomain.Account) error { r.accounts[a.ID] = a; return nil }

func (r *fakeAccountRepo) ClaimSync(tenantID, id string) (bool, error) {
	if r.claimDenied {
		return false, nil
	}
	a := r.accounts[id]
	if a.SyncState == accountdomain.SyncStateSyncing {
		return false, nil
	}
	a.SyncState = accountdomain.SyncStateSyncing
	return true, nil
}

func (r *fakeAccountRepo) ReleaseSync(tenantID, id string, status accountdomain.Status) error {
	a := r.accounts[id]
	a.SyncState = accountdomain.SyncStateIdle
	a.Status = status
	r.releasedWith = status
	return nil
}

func (r *fakeAccountRepo) SeedCursorIfEmpty(tenantID, id, cursor string) error {
	a := r.accounts[id]
	if a.Cursor == "" {
		a.Cursor = cursor
		r.seededCursor = cursor
	}
	return nil
}

func (r *fakeAccountRepo) AdvanceCursor(tenantID, id, oldCursor, newCursor string) (bool, error) {
	a := r.accounts[id]
	if a.Cursor != oldCursor {
		return false, nil
	}
	a.Cursor = newCursor
	return true, nil
}

func (r *fakeAccountRepo) UpdateWatchExpiration(tenantID, id string, expiresAt time.Time) error {
	a := r.accounts[id]
	a.WatchExpiresAt = &expiresAt
	return nil
}

type fakeMessageRepo struct {
	seen      map[string]bool
	linked    []string
	createErr error
}

func (r *fakeMessageRepo) CreateIfAbsent(m *messagedomain.Message) (bool, error) {
	if r.createErr != nil {
		return false, r.createErr
	}
	key := fmt.Sprintf("%s/%s/%s", m.TenantID, m.Provider, m.ProviderMessageID)
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	return true, nil
}

func (r *fakeMessageRepo) LinkToTask(tenantID string, key messagedomain.Key, taskID, summary string, direction messagedomain.Direction, receivedAt time.Time) error {
	r.linked = append(r.linked, key.ProviderMessageID)
	return nil
}

func (r *fakeMessageRepo) FindByKey(tenantID string, key messagedomain.Key) (*messagedomain.Message, error) {
	return nil, nil
}

func (r *fakeMessageRepo) ListByTask(tenantID, taskID string) ([]*messagedomain.Message, error) {
	return nil, nil
}

type fakeProvider struct {
	ids             []string
	newCursor       string
	listErr         error
	fetchErr        error
	watchExpiration string

	listCalls  int
	gotCursor  string
	gotCreds   Credentials
	watchCalls int
}

func (p *fakeProvider) ListMessageIDs(ctx context.Context, creds Credentials, cursor string, maxMessages int) ([]string, string, error) {
	p.listCalls++
	p.gotCursor = cursor
	p.gotCreds = creds
	if p.listErr != nil {
		return nil, "", p.listErr
	}
	return p.ids, p.newCursor, nil
}

func (p *fakeProvider) FetchMeta(ctx context.Context, creds Credentials, id string) (*MessageMeta, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return &MessageMeta{
		ProviderMessageID: id,
		Sender:            "billing@example.com",
		Subject:           "Invoice " + id,
		Snippet:           "Payment is due by Friday.",
		ReceivedAt:        time.Now(),
		Direction:         messagedomain.DirectionIncoming,
	}, nil
}

func (p *fakeProvider) Watch(ctx context.Context, creds Credentials, topic string) (*WatchResult, error) {
	p.watchCalls++
	expiration := p.watchExpiration
	if expiration == "" {
		expiration = strconv.FormatInt(time.Now().Add(7*24*time.Hour).UnixMilli(), 10)
	}
	return &WatchResult{Cursor: "w-1", Expiration: expiration}, nil
}

func (p *fakeProvider) Stop(ctx context.Context, creds Credentials) error { return nil }

type fakeTaskCreator struct {
	created []taskdomain.Draft
	err     error
}

func (c *fakeTaskCreator) CreateFromDraft(tenantID, userID string, draft taskdomain.Draft) (*taskdomain.Task, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, draft)
	return &taskdomain.Task{ID: fmt.Sprintf("task-%d", len(c.created)), TenantID: tenantID, UserID: userID, Title: draft.Title}, nil
}

type fakeNotifier struct {
	dispatched []string
}

func (n *fakeNotifier) Dispatch(ctx context.Context, tenantID, userID string, task *taskdomain.Task) []notification.Result {
	n.dispatched = append(n.dispatched, task.ID)
	return nil
}

type fixture struct {
	usecase     SyncUsecase
	accountRepo *fakeAccountRepo
	messageRepo *fakeMessageRepo
	provider    *fakeProvider
	taskCreator *fakeTaskCreator
	notifier    *fakeNotifier
	vault       *vault.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v := vault.New("test-secret")

	f := &fixture{
		accountRepo: &fakeAccountRepo{accounts: map[string]*accountdomain.Account{}},
		messageRepo: &fakeMessageRepo{seen: map[string]bool{}},
		provider:    &fakeProvider{ids: []string{"m-1", "m-2"}, newCursor: "cursor-2"},
		taskCreator: &fakeTaskCreator{},
		notifier:    &fakeNotifier{},
		vault:       v,
	}
	f.usecase = NewSyncUsecase(
		f.accountRepo,
		f.messageRepo,
		f.taskCreator,
		f.notifier,
		v,
		map[accountdomain.Provider]MailProvider{accountdomain.ProviderGmail: f.provider},
		"projects/p/topics/mail",
		50,
		time.Minute,
	)
	return f
}

func (f *fixture) addAccount(t *testing.T, cursor string) *accountdomain.Account {
	t.Helper()
	encrypted, err := f.vault.Encrypt("access-token")
	require.NoError(t, err)

	account := &accountdomain.Account{
		ID:                   "acc-1",
		TenantID:             "tenant-1",
		UserID:               "user-1",
		Provider:             accountdomain.ProviderGmail,
		Email:                "user@example.com",
		Cursor:               cursor,
		Status:               accountdomain.StatusActive,
		SyncState:            accountdomain.SyncStateIdle,
		EncryptedAccessToken: encrypted,
	}
	f.accountRepo.accounts[account.ID] = account
	return account
}

func TestSyncProcessesNewMessages(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")

	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "cursor-1", f.provider.gotCursor)
	assert.Equal(t, "access-token", f.provider.gotCreds.AccessToken)
	assert.Equal(t, "cursor-2", f.accountRepo.accounts["acc-1"].Cursor)
	assert.Len(t, f.taskCreator.created, 2)
	assert.Equal(t, []string{"m-1", "m-2"}, f.messageRepo.linked)
	assert.Len(t, f.notifier.dispatched, 2)
	assert.Equal(t, accountdomain.SyncStateIdle, f.accountRepo.accounts["acc-1"].SyncState)
}

func TestSyncSecondRunSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")

	_, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.NoError(t, err)

	// The provider re-reports the same messages from the new cursor.
	f.provider.newCursor = "cursor-2"
	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, f.taskCreator.created, 2, "no new tasks for duplicates")
	assert.Len(t, f.notifier.dispatched, 2, "no new notifications for duplicates")
}

func TestSyncLostClaimYieldsZeroResult(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.accountRepo.claimDenied = true

	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, f.provider.listCalls, "claim loser must not touch the provider")
}

func TestSyncDisabledAccountIsNoop(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "cursor-1")
	account.Status = accountdomain.StatusDisabled

	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, f.provider.listCalls)
}

func TestSyncCredentialFailureMarksAccountError(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "cursor-1")
	account.EncryptedAccessToken = "not-a-valid-blob"

	_, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.Error(t, err)

	assert.True(t, apperr.IsKind(err, apperr.KindCredential))
	assert.Equal(t, accountdomain.StatusError, f.accountRepo.releasedWith)
	assert.Equal(t, 0, f.provider.listCalls)
}

func TestSyncProviderFailureKeepsCursor(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.provider.listErr = errors.New("history unavailable")

	_, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.Error(t, err)

	assert.True(t, apperr.IsKind(err, apperr.KindProvider))
	assert.Equal(t, "cursor-1", f.accountRepo.accounts["acc-1"].Cursor)
	assert.Equal(t, accountdomain.StatusActive, f.accountRepo.releasedWith, "provider errors are retryable")
}

func TestSyncFetchFailureAbortsWithoutAdvance(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.provider.fetchErr = errors.New("message gone")

	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.Error(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, "cursor-1", f.accountRepo.accounts["acc-1"].Cursor)
}

func TestSyncStoreFailureAbortsWithoutAdvance(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.messageRepo.createErr = errors.New("storage down")

	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.Error(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "cursor-1", f.accountRepo.accounts["acc-1"].Cursor, "cursor must not pass an unstored message")
	assert.Empty(t, f.taskCreator.created)
	assert.Empty(t, f.messageRepo.seen)
}

func TestSyncTaskFailureSkipsMessageAndContinues(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.taskCreator.err = errors.New("task store down")

	result, err := f.usecase.Sync(context.Background(), "tenant-1", "acc-1", 0)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "cursor-2", f.accountRepo.accounts["acc-1"].Cursor)
}

func TestSyncByProviderEmailUnknownAccount(t *testing.T) {
	f := newFixture(t)

	found, result, err := f.usecase.SyncByProviderEmail(context.Background(), accountdomain.ProviderGmail, "stranger@example.com", "123")
	require.NoError(t, err)

	assert.False(t, found)
	assert.Nil(t, result)
	assert.Equal(t, 0, f.provider.listCalls)
}

func TestSyncByProviderEmailSeedsEmptyCursor(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "")

	found, _, err := f.usecase.SyncByProviderEmail(context.Background(), accountdomain.ProviderGmail, "user@example.com", "hist-42")
	require.NoError(t, err)

	assert.True(t, found)
	assert.Equal(t, "hist-42", f.accountRepo.seededCursor)
	assert.Equal(t, "hist-42", f.provider.gotCursor, "sync starts from the seeded cursor")
}

func TestSyncByProviderEmailKeepsExistingCursor(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")

	found, _, err := f.usecase.SyncByProviderEmail(context.Background(), accountdomain.ProviderGmail, "user@example.com", "hist-42")
	require.NoError(t, err)

	assert.True(t, found)
	assert.Equal(t, "cursor-1", f.provider.gotCursor)
}

func TestSyncAllAggregatesAndRenewsWatch(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")

	result, err := f.usecase.SyncAll(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, f.provider.watchCalls, "missing watch gets armed")
	expiresAt := f.accountRepo.accounts["acc-1"].WatchExpiresAt
	require.NotNil(t, expiresAt)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *expiresAt, time.Minute)
}

func TestSyncAllNormalizesISOWatchExpiration(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.provider.watchExpiration = "2026-09-04T12:00:00Z"

	_, err := f.usecase.SyncAll(context.Background(), 10)
	require.NoError(t, err)

	expiresAt := f.accountRepo.accounts["acc-1"].WatchExpiresAt
	require.NotNil(t, expiresAt)
	assert.Equal(t, time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC), expiresAt.UTC())
}

func TestSyncAllIgnoresUnusableWatchExpiration(t *testing.T) {
	f := newFixture(t)
	f.addAccount(t, "cursor-1")
	f.provider.watchExpiration = "soonish"

	_, err := f.usecase.SyncAll(context.Background(), 10)
	require.NoError(t, err)

	assert.Nil(t, f.accountRepo.accounts["acc-1"].WatchExpiresAt)
}

func TestSyncAllSkipsFreshWatch(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t, "cursor-1")
	fresh := time.Now().Add(72 * time.Hour)
	account.WatchExpiresAt = &fresh

	_, err := f.usecase.SyncAll(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 0, f.provider.watchCalls)
}
