package repository

import (
	"time"

	"mailtask-backend/internal/account/domain"
)

// AccountRepository defines the interface for account data access.
// Cursor and sync-state mutations are conditional writes so concurrent
// syncs across processes lose harmlessly instead of racing.
type AccountRepository interface {
	Create(account *domain.Account) error

	// FindByID finds an account within a tenant. Returns (nil, nil) when absent.
	FindByID(tenantID, id string) (*domain.Account, error)

	// FindByProviderEmail resolves a webhook's account identifier.
	FindByProviderEmail(provider domain.Provider, email string) (*domain.Account, error)

	// ListEligible returns active accounts for batched sync, oldest update first.
	ListEligible(limit int) ([]*domain.Account, error)

	Update(account *domain.Account) error

	// ClaimSync transitions idle -> syncing. Returns false when another
	// sync already holds the claim.
	ClaimSync(tenantID, id string) (bool, error)

	// ReleaseSync returns the account to idle with the given lifecycle status.
	ReleaseSync(tenantID, id string, status domain.Status) error

	// SeedCursorIfEmpty sets the cursor only when no cursor is stored yet.
	SeedCursorIfEmpty(tenantID, id, cursor string) error

	// AdvanceCursor moves the cursor from oldCursor to newCursor. Returns
	// false when the stored cursor no longer matches oldCursor.
	AdvanceCursor(tenantID, id, oldCursor, newCursor string) (bool, error)

	// UpdateWatchExpiration records the provider watch expiration.
	UpdateWatchExpiration(tenantID, id string, expiresAt time.Time) error
}
