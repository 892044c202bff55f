package repository

import (
	"errors"
	"time"

	"mailtask-backend/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// accountRepository implements AccountRepository using GORM
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Status == "" {
		account.Status = domain.StatusActive
	}
	if account.SyncState == "" {
		account.SyncState = domain.SyncStateIdle
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(tenantID, id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByProviderEmail(provider domain.Provider, email string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("provider = ? AND email = ?", provider, email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) ListEligible(limit int) ([]*domain.Account, error) {
	var accounts []*domain.Account
	query := r.db.Where("status = ?", domain.StatusActive).Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) Update(account *domain.Account) error {
	account.UpdatedAt = time.Now()
	return r.db.Save(account).Error
}

// ClaimSync is a conditional write: only one concurrent caller observes
// RowsAffected == 1, so overlapping webhook deliveries for the same
// account never run two syncs at once.
func (r *accountRepository) ClaimSync(tenantID, id string) (bool, error) {
	result := r.db.Model(&domain.Account{}).
		Where("tenant_id = ? AND id = ? AND sync_state <> ?", tenantID, id, domain.SyncStateSyncing).
		Updates(map[string]interface{}{
			"sync_state": domain.SyncStateSyncing,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *accountRepository) ReleaseSync(tenantID, id string, status domain.Status) error {
	return r.db.Model(&domain.Account{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"sync_state": domain.SyncStateIdle,
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *accountRepository) SeedCursorIfEmpty(tenantID, id, cursor string) error {
	return r.db.Model(&domain.Account{}).
		Where("tenant_id = ? AND id = ? AND (cursor = '' OR cursor IS NULL)", tenantID, id).
		Updates(map[string]interface{}{
			"cursor":     cursor,
			"updated_at": time.Now(),
		}).Error
}

// AdvanceCursor moves the cursor forward only from the value the sync
// started with. A losing concurrent sync sees false and leaves the
// stored cursor alone; its duplicates are absorbed by the message store.
func (r *accountRepository) AdvanceCursor(tenantID, id, oldCursor, newCursor string) (bool, error) {
	result := r.db.Model(&domain.Account{}).
		Where("tenant_id = ? AND id = ? AND cursor = ?", tenantID, id, oldCursor).
		Updates(map[string]interface{}{
			"cursor":     newCursor,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *accountRepository) UpdateWatchExpiration(tenantID, id string, expiresAt time.Time) error {
	return r.db.Model(&domain.Account{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"watch_expires_at": expiresAt,
			"updated_at":       time.Now(),
		}).Error
}
