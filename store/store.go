// Package store provides the authoritative transactional store for
// campaigns, queue entries, allocations and wallets. Every mutating
// operation runs inside a transaction scoped to a single campaign, which is
// what serializes queue promotion and draw allocation without any
// distributed locking.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"kuji-store/models"
)

// Tx is the view of the store inside a transaction scoped to one campaign.
// Wallet and ledger operations take a user id because wallets are not
// campaign-scoped, but they commit and roll back with the same transaction.
type Tx interface {
	// Campaign returns the scoped campaign or models.ErrCampaignNotFound.
	Campaign() (*models.Campaign, error)
	// UpdateCampaign persists new sold counter and status.
	UpdateCampaign(soldTickets int, status models.CampaignStatus) error

	// Variants returns all prize variants with derived remaining stock.
	Variants() ([]models.VariantStock, error)
	// DiscountTiers returns the campaign's configured discount tiers.
	DiscountTiers() ([]models.DiscountTier, error)

	// LiveEntries returns waiting and active entries ordered by position.
	LiveEntries() ([]models.QueueEntry, error)
	// LiveEntryByUser returns the caller's live entry or models.ErrEntryNotFound.
	LiveEntryByUser(userID string) (*models.QueueEntry, error)
	// NextPosition returns max(position)+1 for the campaign.
	NextPosition() (int64, error)
	InsertEntry(e *models.QueueEntry) error
	UpdateEntry(e *models.QueueEntry) error

	// AllocatedNumbers returns the set of already-taken ticket numbers.
	AllocatedNumbers() (map[int]bool, error)
	InsertAllocations(rows []models.TicketAllocation) error
	// RecentRarities returns the rarities of the user's most recent draws on
	// this campaign, newest first, up to n.
	RecentRarities(userID string, n int) ([]int, error)

	// WalletBalance returns the user's balance or models.ErrWalletNotFound.
	WalletBalance(userID string) (decimal.Decimal, error)
	// DebitWallet subtracts amount and returns the new balance. The caller
	// checks sufficiency first; a negative result is a store error.
	DebitWallet(userID string, amount decimal.Decimal) (decimal.Decimal, error)
	// CreditWallet adds amount (refunds) and returns the new balance.
	CreditWallet(userID string, amount decimal.Decimal) (decimal.Decimal, error)
	AppendLedger(entry *models.LedgerEntry) error
}

// Store is the transactional entry point. Update serializes transactions per
// campaign; two concurrent Update calls for the same campaign never observe
// each other's partial state, and nothing written inside fn survives if fn
// returns an error.
type Store interface {
	View(ctx context.Context, campaignID string, fn func(Tx) error) error
	Update(ctx context.Context, campaignID string, fn func(Tx) error) error

	// CampaignsWithLiveEntries lists campaigns the sweeper has to visit.
	CampaignsWithLiveEntries(ctx context.Context) ([]string, error)

	Close()
}
