package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kuji-store/config"
	"kuji-store/models"
	"kuji-store/monitoring"
	"kuji-store/store"
)

// RandSource supplies the randomness for ticket assignment and prize
// selection. Injected so tests can seed it.
type RandSource interface {
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// NewSeededRand returns a RandSource safe for concurrent use.
func NewSeededRand(seed int64) RandSource {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// DrawRequest describes one purchase. TicketNumbers, when present, pick
// exact tickets and fix the draw count. Otherwise DrawCount or the named
// discount tier's draw count applies and ticket numbers are assigned at
// random from the free pool.
type DrawRequest struct {
	TicketNumbers  []int  `json:"ticket_numbers,omitempty"`
	DiscountTierID string `json:"discount_tier_id,omitempty"`
	DrawCount      int    `json:"draw_count,omitempty"`
}

// DrawResult is what a committed draw hands back to the caller.
type DrawResult struct {
	Allocations []models.TicketAllocation `json:"allocations"`
	Quote       Quote                     `json:"quote"`
	NewBalance  decimal.Decimal           `json:"new_balance"`
}

// DrawService executes the purchase transaction: pricing, payment, ticket
// assignment and prize selection commit or roll back as one unit, and the
// caller's queue session completes in the same transaction.
type DrawService struct {
	store  store.Store
	queue  *QueueService
	cfg    config.DrawConfig
	logger *zap.Logger
	rng    RandSource
	now    func() time.Time
}

func NewDrawService(st store.Store, queue *QueueService, cfg config.DrawConfig, logger *zap.Logger, rng RandSource) *DrawService {
	if rng == nil {
		rng = NewSeededRand(time.Now().UnixNano())
	}
	return &DrawService{
		store:  st,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
		rng:    rng,
		now:    time.Now,
	}
}

// Preview prices a request without touching the queue or the wallet. The
// same engine runs inside the draw transaction, so a preview total matches
// the charged total as long as the sold counter has not moved in between.
func (s *DrawService) Preview(ctx context.Context, campaignID string, req DrawRequest) (Quote, error) {
	if len(req.TicketNumbers) == 0 && req.DrawCount <= 0 && req.DiscountTierID == "" {
		return Quote{}, models.ErrEmptyDrawRequest
	}

	var quote Quote
	err := s.store.View(ctx, campaignID, func(tx store.Tx) error {
		campaign, err := tx.Campaign()
		if err != nil {
			return err
		}
		tiers, err := tx.DiscountTiers()
		if err != nil {
			return err
		}
		count, err := resolveDrawCount(req, tiers)
		if err != nil {
			return err
		}
		quote = ComputePrice(count, campaign.UnitPrice, campaign.SoldTickets, tiers)
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// Draw performs a purchase for the user currently holding the active queue
// session. On success the session is completed and the next waiting user
// promoted, all in the same commit as the allocation and payment.
func (s *DrawService) Draw(ctx context.Context, campaignID, userID string, req DrawRequest) (*DrawResult, error) {
	if len(req.TicketNumbers) == 0 && req.DrawCount <= 0 && req.DiscountTierID == "" {
		return nil, models.ErrEmptyDrawRequest
	}
	if hasDuplicates(req.TicketNumbers) {
		return nil, models.ErrInvalidTicketRange
	}

	started := s.now()
	var (
		result *DrawResult
		promo  *promotion
	)
	err := s.store.Update(ctx, campaignID, func(tx store.Tx) error {
		var err error
		result, promo, err = s.drawTx(tx, campaignID, userID, req)
		return err
	})
	monitoring.TrackDrawDuration(campaignID, s.now().Sub(started))
	if err != nil {
		monitoring.TrackDraw(campaignID, "error")
		return nil, err
	}

	s.queue.emitPromotion(campaignID, promo)
	monitoring.TrackDraw(campaignID, "success")
	s.logger.Info("draw committed",
		zap.String("campaign_id", campaignID),
		zap.String("user_id", userID),
		zap.Int("tickets", len(result.Allocations)),
		zap.String("total", result.Quote.Total.String()))
	return result, nil
}

func (s *DrawService) drawTx(tx store.Tx, campaignID, userID string, req DrawRequest) (*DrawResult, *promotion, error) {
	campaign, err := tx.Campaign()
	if err != nil {
		return nil, nil, err
	}
	if campaign.Status != models.CampaignActive {
		return nil, nil, models.ErrCampaignNotActive
	}

	entry, err := tx.LiveEntryByUser(userID)
	if errors.Is(err, models.ErrEntryNotFound) {
		return nil, nil, models.ErrNotYourTurn
	}
	if err != nil {
		return nil, nil, err
	}
	if entry.Status != models.QueueActive {
		return nil, nil, models.ErrNotYourTurn
	}

	tiers, err := tx.DiscountTiers()
	if err != nil {
		return nil, nil, err
	}
	count, err := resolveDrawCount(req, tiers)
	if err != nil {
		return nil, nil, err
	}
	if campaign.RemainingTickets() < count {
		return nil, nil, models.ErrPoolExhausted
	}

	quote := ComputePrice(count, campaign.UnitPrice, campaign.SoldTickets, tiers)
	balance, err := tx.WalletBalance(userID)
	if err != nil {
		return nil, nil, err
	}
	if balance.LessThan(quote.Total) {
		return nil, nil, &models.InsufficientFundsError{Required: quote.Total, Available: balance}
	}

	allocated, err := tx.AllocatedNumbers()
	if err != nil {
		return nil, nil, err
	}
	numbers, err := s.resolveNumbers(req.TicketNumbers, count, campaign.TotalTickets, allocated)
	if err != nil {
		return nil, nil, err
	}

	variants, err := tx.Variants()
	if err != nil {
		return nil, nil, err
	}
	recent, err := tx.RecentRarities(userID, s.cfg.PityWindow)
	if err != nil {
		return nil, nil, err
	}
	pityActive := len(recent) >= s.cfg.PityWindow && !containsTop(recent)

	now := s.now()
	rows := make([]models.TicketAllocation, 0, count)
	for i, num := range numbers {
		soldBefore := campaign.SoldTickets + i
		variant := s.pickVariant(variants, campaign.TotalTickets, soldBefore, pityActive)
		if variant == nil {
			return nil, nil, models.ErrPoolExhausted
		}
		variant.Remaining--
		if variant.Rarity == models.RarityTop {
			pityActive = false
		}
		rows = append(rows, models.TicketAllocation{
			ID:           uuid.NewString(),
			CampaignID:   campaignID,
			VariantID:    variant.ID,
			UserID:       userID,
			TicketNumber: num,
			Tier:         variant.Tier,
			CreatedAt:    now,
		})
	}
	if err := tx.InsertAllocations(rows); err != nil {
		return nil, nil, err
	}

	newSold := campaign.SoldTickets + count
	status := campaign.Status
	if newSold >= campaign.TotalTickets {
		status = models.CampaignSoldOut
	}
	if err := tx.UpdateCampaign(newSold, status); err != nil {
		return nil, nil, err
	}

	newBalance, err := tx.DebitWallet(userID, quote.Total)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.AppendLedger(&models.LedgerEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		CampaignID: campaignID,
		Kind:       models.LedgerDebit,
		Amount:     quote.Total,
		Ref:        "draw:" + rows[0].ID,
		CreatedAt:  now,
	}); err != nil {
		return nil, nil, err
	}

	promo, err := s.queue.completeSessionTx(tx, userID)
	if err != nil {
		return nil, nil, err
	}
	return &DrawResult{Allocations: rows, Quote: quote, NewBalance: newBalance}, promo, nil
}

// pickVariant selects a prize by weighted lottery over variants with
// remaining stock. Last-prize variants are reserved: they never enter the
// regular pool and go to whoever draws the final ticket of the campaign.
// When the remaining pool drops under the endgame threshold, top-rarity
// weights are boosted so the headline prizes cannot quietly rot at the
// bottom of the pool. An active pity restricts the pool to top-rarity
// variants when any remain.
func (s *DrawService) pickVariant(variants []models.VariantStock, totalTickets, soldBefore int, pityActive bool) *models.VariantStock {
	if soldBefore+1 == totalTickets {
		for i := range variants {
			if variants[i].IsLastPrize && variants[i].Remaining > 0 {
				return &variants[i]
			}
		}
	}

	pool := make([]*models.VariantStock, 0, len(variants))
	for i := range variants {
		if variants[i].Remaining > 0 && !variants[i].IsLastPrize {
			pool = append(pool, &variants[i])
		}
	}
	if len(pool) == 0 {
		// Regular stock ran dry before the final ticket, which only happens
		// on a miscounted catalog. Release reserved stock rather than fail
		// the purchase.
		for i := range variants {
			if variants[i].Remaining > 0 {
				pool = append(pool, &variants[i])
			}
		}
	}
	if pityActive {
		top := pool[:0:0]
		for _, v := range pool {
			if v.Rarity == models.RarityTop {
				top = append(top, v)
			}
		}
		if len(top) > 0 {
			pool = top
		}
	}
	if len(pool) == 0 {
		return nil
	}

	remaining := totalTickets - soldBefore
	endgame := float64(remaining)/float64(totalTickets) <= s.cfg.EndgameThreshold

	total := 0
	weights := make([]int, len(pool))
	for i, v := range pool {
		w := v.Weight * v.Remaining
		if w < 1 {
			w = 1
		}
		if endgame && v.Rarity == models.RarityTop {
			w *= s.cfg.EndgamePityMultiplier
		}
		weights[i] = w
		total += w
	}

	pick := s.rng.Intn(total)
	for i, w := range weights {
		if pick < w {
			return pool[i]
		}
		pick -= w
	}
	return pool[len(pool)-1]
}

// resolveNumbers validates caller-picked ticket numbers or assigns random
// free ones when the caller picked none.
func (s *DrawService) resolveNumbers(requested []int, count, totalTickets int, allocated map[int]bool) ([]int, error) {
	if len(requested) > 0 {
		for _, n := range requested {
			if n < 1 || n > totalTickets {
				return nil, models.ErrInvalidTicketRange
			}
			if allocated[n] {
				return nil, models.ErrTicketAlreadyAllocated
			}
		}
		return requested, nil
	}

	free := make([]int, 0, totalTickets-len(allocated))
	for n := 1; n <= totalTickets; n++ {
		if !allocated[n] {
			free = append(free, n)
		}
	}
	if len(free) < count {
		return nil, models.ErrPoolExhausted
	}
	for i := 0; i < count; i++ {
		j := i + s.rng.Intn(len(free)-i)
		free[i], free[j] = free[j], free[i]
	}
	return free[:count], nil
}

func resolveDrawCount(req DrawRequest, tiers []models.DiscountTier) (int, error) {
	count := len(req.TicketNumbers)
	if count == 0 {
		count = req.DrawCount
	} else if req.DrawCount > 0 && req.DrawCount != count {
		return 0, models.ErrInvalidTicketRange
	}

	if req.DiscountTierID != "" {
		var tier *models.DiscountTier
		for i := range tiers {
			if tiers[i].ID == req.DiscountTierID && tiers[i].IsActive {
				tier = &tiers[i]
				break
			}
		}
		if tier == nil {
			return 0, models.ErrTierNotFound
		}
		if count == 0 {
			count = tier.DrawCount
		} else if count != tier.DrawCount {
			return 0, models.ErrInvalidTicketRange
		}
	}

	if count <= 0 {
		return 0, models.ErrEmptyDrawRequest
	}
	return count, nil
}

func containsTop(rarities []int) bool {
	for _, r := range rarities {
		if r == models.RarityTop {
			return true
		}
	}
	return false
}

func hasDuplicates(numbers []int) bool {
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if seen[n] {
			return true
		}
		seen[n] = true
	}
	return false
}
