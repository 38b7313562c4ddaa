package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"kuji-store/models"
)

// PriceSegment is one line of a price breakdown.
type PriceSegment struct {
	Kind  string          `json:"kind"` // full_set, combo, single
	Label string          `json:"label,omitempty"`
	Draws int             `json:"draws"` // draws per application
	Times int             `json:"times"` // how often the segment applies
	Price decimal.Decimal `json:"price"` // total for the segment
}

// Quote is the pricing engine output. Savings is never negative.
type Quote struct {
	Total    decimal.Decimal `json:"total_price"`
	Regular  decimal.Decimal `json:"regular_price"`
	Savings  decimal.Decimal `json:"savings"`
	Segments []PriceSegment  `json:"segments"`
}

// ComputePrice is the pricing engine. It is pure and deterministic: the same
// inputs produce the same quote, whether called for a preview or inside the
// draw transaction to charge the exact amount.
//
// The full-set discount applies only on a completely untouched campaign
// (soldTickets == 0), at most once, using the single largest applicable
// full_set tier. Combo tiers then apply greedily, largest draw count first.
// Leftover draws cost the regular unit price. A tier priced at or above
// its draws at the regular unit price is ignored, so the total never
// exceeds drawCount times the unit price.
func ComputePrice(drawCount int, unitPrice decimal.Decimal, soldTickets int, tiers []models.DiscountTier) Quote {
	quote := Quote{
		Total:    decimal.Zero,
		Regular:  decimal.Zero,
		Savings:  decimal.Zero,
		Segments: []PriceSegment{},
	}
	if drawCount <= 0 {
		return quote
	}

	quote.Regular = unitPrice.Mul(decimal.NewFromInt(int64(drawCount)))
	remaining := drawCount

	if soldTickets == 0 {
		if tier := largestFullSet(tiers, remaining, unitPrice); tier != nil {
			quote.Segments = append(quote.Segments, PriceSegment{
				Kind:  string(models.DiscountFullSet),
				Label: tier.Label,
				Draws: tier.DrawCount,
				Times: 1,
				Price: tier.Price,
			})
			quote.Total = quote.Total.Add(tier.Price)
			remaining -= tier.DrawCount
		}
	}

	for _, tier := range combosLargestFirst(tiers) {
		if remaining < tier.DrawCount || !undercutsRegular(tier, unitPrice) {
			continue
		}
		times := remaining / tier.DrawCount
		segPrice := tier.Price.Mul(decimal.NewFromInt(int64(times)))
		quote.Segments = append(quote.Segments, PriceSegment{
			Kind:  string(models.DiscountCombo),
			Label: tier.Label,
			Draws: tier.DrawCount,
			Times: times,
			Price: segPrice,
		})
		quote.Total = quote.Total.Add(segPrice)
		remaining -= times * tier.DrawCount
	}

	if remaining > 0 {
		segPrice := unitPrice.Mul(decimal.NewFromInt(int64(remaining)))
		quote.Segments = append(quote.Segments, PriceSegment{
			Kind:  "single",
			Draws: 1,
			Times: remaining,
			Price: segPrice,
		})
		quote.Total = quote.Total.Add(segPrice)
	}

	quote.Savings = quote.Regular.Sub(quote.Total)
	return quote
}

func largestFullSet(tiers []models.DiscountTier, drawCount int, unitPrice decimal.Decimal) *models.DiscountTier {
	var best *models.DiscountTier
	for i := range tiers {
		t := &tiers[i]
		if !t.IsActive || t.Type != models.DiscountFullSet || t.DrawCount > drawCount {
			continue
		}
		if !undercutsRegular(*t, unitPrice) {
			continue
		}
		if best == nil || t.DrawCount > best.DrawCount {
			best = t
		}
	}
	return best
}

// undercutsRegular reports whether the tier is cheaper than buying its
// draws at the regular unit price. A misconfigured tier that is not is
// never applied.
func undercutsRegular(tier models.DiscountTier, unitPrice decimal.Decimal) bool {
	return tier.Price.LessThan(unitPrice.Mul(decimal.NewFromInt(int64(tier.DrawCount))))
}

func combosLargestFirst(tiers []models.DiscountTier) []models.DiscountTier {
	var combos []models.DiscountTier
	for _, t := range tiers {
		if t.IsActive && t.Type == models.DiscountCombo {
			combos = append(combos, t)
		}
	}
	sort.Slice(combos, func(i, j int) bool { return combos[i].DrawCount > combos[j].DrawCount })
	return combos
}
