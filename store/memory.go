package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"kuji-store/models"
)

// Memory is an in-process Store implementation with the same transactional
// contract as the Postgres store: one big lock serializes transactions, and
// a snapshot taken at Update start is restored when fn fails, so no partial
// writes ever survive. Used for tests and local development.
type Memory struct {
	mu        sync.Mutex
	campaigns map[string]models.Campaign
	variants  map[string][]models.PrizeVariant
	tiers     map[string][]models.DiscountTier
	entries   map[string][]models.QueueEntry
	allocs    map[string][]models.TicketAllocation
	wallets   map[string]decimal.Decimal
	ledger    []models.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{
		campaigns: make(map[string]models.Campaign),
		variants:  make(map[string][]models.PrizeVariant),
		tiers:     make(map[string][]models.DiscountTier),
		entries:   make(map[string][]models.QueueEntry),
		allocs:    make(map[string][]models.TicketAllocation),
		wallets:   make(map[string]decimal.Decimal),
	}
}

// SeedCampaign installs catalog data. Meant for tests and the memory-driver
// dev mode; the catalog itself is an external collaborator.
func (m *Memory) SeedCampaign(c models.Campaign, variants []models.PrizeVariant, tiers []models.DiscountTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
	m.variants[c.ID] = append([]models.PrizeVariant(nil), variants...)
	m.tiers[c.ID] = append([]models.DiscountTier(nil), tiers...)
}

func (m *Memory) SeedWallet(userID string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[userID] = balance
}

func (m *Memory) View(ctx context.Context, campaignID string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{m: m, campaignID: campaignID})
}

func (m *Memory) Update(ctx context.Context, campaignID string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memTx{m: m, campaignID: campaignID}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) CampaignsWithLiveEntries(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, entries := range m.entries {
		for i := range entries {
			if entries[i].Live() {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() {}

type memSnapshot struct {
	campaigns map[string]models.Campaign
	entries   map[string][]models.QueueEntry
	allocs    map[string][]models.TicketAllocation
	wallets   map[string]decimal.Decimal
	ledger    []models.LedgerEntry
}

// Variants and tiers are immutable after seeding and need no snapshot.
func (m *Memory) snapshot() memSnapshot {
	snap := memSnapshot{
		campaigns: make(map[string]models.Campaign, len(m.campaigns)),
		entries:   make(map[string][]models.QueueEntry, len(m.entries)),
		allocs:    make(map[string][]models.TicketAllocation, len(m.allocs)),
		wallets:   make(map[string]decimal.Decimal, len(m.wallets)),
		ledger:    append([]models.LedgerEntry(nil), m.ledger...),
	}
	for k, v := range m.campaigns {
		snap.campaigns[k] = v
	}
	for k, v := range m.entries {
		snap.entries[k] = append([]models.QueueEntry(nil), v...)
	}
	for k, v := range m.allocs {
		snap.allocs[k] = append([]models.TicketAllocation(nil), v...)
	}
	for k, v := range m.wallets {
		snap.wallets[k] = v
	}
	return snap
}

func (m *Memory) restore(snap memSnapshot) {
	m.campaigns = snap.campaigns
	m.entries = snap.entries
	m.allocs = snap.allocs
	m.wallets = snap.wallets
	m.ledger = snap.ledger
}

type memTx struct {
	m          *Memory
	campaignID string
}

func (t *memTx) Campaign() (*models.Campaign, error) {
	c, ok := t.m.campaigns[t.campaignID]
	if !ok {
		return nil, models.ErrCampaignNotFound
	}
	out := c
	return &out, nil
}

func (t *memTx) UpdateCampaign(soldTickets int, status models.CampaignStatus) error {
	c, ok := t.m.campaigns[t.campaignID]
	if !ok {
		return models.ErrCampaignNotFound
	}
	c.SoldTickets = soldTickets
	c.Status = status
	t.m.campaigns[t.campaignID] = c
	return nil
}

func (t *memTx) Variants() ([]models.VariantStock, error) {
	used := make(map[string]int)
	for _, a := range t.m.allocs[t.campaignID] {
		used[a.VariantID]++
	}
	variants := t.m.variants[t.campaignID]
	out := make([]models.VariantStock, 0, len(variants))
	for _, v := range variants {
		out = append(out, models.VariantStock{
			PrizeVariant: v,
			Remaining:    v.Stock - used[v.ID],
		})
	}
	return out, nil
}

func (t *memTx) DiscountTiers() ([]models.DiscountTier, error) {
	return append([]models.DiscountTier(nil), t.m.tiers[t.campaignID]...), nil
}

func (t *memTx) LiveEntries() ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	for _, e := range t.m.entries[t.campaignID] {
		if e.Live() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (t *memTx) LiveEntryByUser(userID string) (*models.QueueEntry, error) {
	for _, e := range t.m.entries[t.campaignID] {
		if e.UserID == userID && e.Live() {
			out := e
			return &out, nil
		}
	}
	return nil, models.ErrEntryNotFound
}

func (t *memTx) NextPosition() (int64, error) {
	var max int64
	for _, e := range t.m.entries[t.campaignID] {
		if e.Position > max {
			max = e.Position
		}
	}
	return max + 1, nil
}

func (t *memTx) InsertEntry(e *models.QueueEntry) error {
	t.m.entries[t.campaignID] = append(t.m.entries[t.campaignID], *e)
	return nil
}

func (t *memTx) UpdateEntry(e *models.QueueEntry) error {
	entries := t.m.entries[t.campaignID]
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = *e
			return nil
		}
	}
	return models.ErrEntryNotFound
}

func (t *memTx) AllocatedNumbers() (map[int]bool, error) {
	out := make(map[int]bool)
	for _, a := range t.m.allocs[t.campaignID] {
		out[a.TicketNumber] = true
	}
	return out, nil
}

func (t *memTx) InsertAllocations(rows []models.TicketAllocation) error {
	taken, _ := t.AllocatedNumbers()
	for _, r := range rows {
		if taken[r.TicketNumber] {
			return models.ErrTicketAlreadyAllocated
		}
		taken[r.TicketNumber] = true
	}
	t.m.allocs[t.campaignID] = append(t.m.allocs[t.campaignID], rows...)
	return nil
}

func (t *memTx) RecentRarities(userID string, n int) ([]int, error) {
	rarity := make(map[string]int)
	for _, v := range t.m.variants[t.campaignID] {
		rarity[v.ID] = v.Rarity
	}
	allocs := t.m.allocs[t.campaignID]
	var out []int
	for i := len(allocs) - 1; i >= 0 && len(out) < n; i-- {
		if allocs[i].UserID == userID {
			out = append(out, rarity[allocs[i].VariantID])
		}
	}
	return out, nil
}

func (t *memTx) WalletBalance(userID string) (decimal.Decimal, error) {
	bal, ok := t.m.wallets[userID]
	if !ok {
		return decimal.Zero, models.ErrWalletNotFound
	}
	return bal, nil
}

func (t *memTx) DebitWallet(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	bal, ok := t.m.wallets[userID]
	if !ok {
		return decimal.Zero, models.ErrWalletNotFound
	}
	newBal := bal.Sub(amount)
	t.m.wallets[userID] = newBal
	return newBal, nil
}

func (t *memTx) CreditWallet(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	bal, ok := t.m.wallets[userID]
	if !ok {
		return decimal.Zero, models.ErrWalletNotFound
	}
	newBal := bal.Add(amount)
	t.m.wallets[userID] = newBal
	return newBal, nil
}

func (t *memTx) AppendLedger(entry *models.LedgerEntry) error {
	t.m.ledger = append(t.m.ledger, *entry)
	return nil
}
