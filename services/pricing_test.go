package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuji-store/models"
)

func testTiers() []models.DiscountTier {
	return []models.DiscountTier{
		{ID: "tier-full", CampaignID: "camp-1", Type: models.DiscountFullSet, DrawCount: 80, Price: decimal.NewFromInt(70000), Label: "full set", IsActive: true},
		{ID: "tier-10", CampaignID: "camp-1", Type: models.DiscountCombo, DrawCount: 10, Price: decimal.NewFromInt(9000), Label: "10-pack", IsActive: true},
		{ID: "tier-5", CampaignID: "camp-1", Type: models.DiscountCombo, DrawCount: 5, Price: decimal.NewFromInt(4700), Label: "5-pack", IsActive: true},
		{ID: "tier-off", CampaignID: "camp-1", Type: models.DiscountCombo, DrawCount: 3, Price: decimal.NewFromInt(2000), Label: "retired", IsActive: false},
	}
}

func TestComputePrice_SingleDraws(t *testing.T) {
	unit := decimal.NewFromInt(1000)

	quote := ComputePrice(3, unit, 20, testTiers())

	assert.True(t, quote.Total.Equal(decimal.NewFromInt(3000)), "got %s", quote.Total)
	assert.True(t, quote.Savings.IsZero())
	require.Len(t, quote.Segments, 1)
	assert.Equal(t, "single", quote.Segments[0].Kind)
	assert.Equal(t, 3, quote.Segments[0].Times)
}

func TestComputePrice_CombosLargestFirst(t *testing.T) {
	unit := decimal.NewFromInt(1000)

	// 27 = 2x 10-pack + 1x 5-pack + 2 singles
	quote := ComputePrice(27, unit, 20, testTiers())

	expected := decimal.NewFromInt(9000*2 + 4700 + 1000*2)
	assert.True(t, quote.Total.Equal(expected), "got %s", quote.Total)
	assert.True(t, quote.Regular.Equal(decimal.NewFromInt(27000)))
	assert.True(t, quote.Savings.Equal(decimal.NewFromInt(27000).Sub(expected)))

	require.Len(t, quote.Segments, 3)
	assert.Equal(t, 10, quote.Segments[0].Draws)
	assert.Equal(t, 2, quote.Segments[0].Times)
	assert.Equal(t, 5, quote.Segments[1].Draws)
	assert.Equal(t, "single", quote.Segments[2].Kind)
}

func TestComputePrice_InactiveTierIgnored(t *testing.T) {
	quote := ComputePrice(3, decimal.NewFromInt(1000), 20, testTiers())

	for _, seg := range quote.Segments {
		assert.NotEqual(t, "retired", seg.Label)
	}
}

func TestComputePrice_FullSetOnlyOnUntouchedCampaign(t *testing.T) {
	unit := decimal.NewFromInt(1000)

	fresh := ComputePrice(80, unit, 0, testTiers())
	require.NotEmpty(t, fresh.Segments)
	assert.Equal(t, string(models.DiscountFullSet), fresh.Segments[0].Kind)
	assert.True(t, fresh.Total.Equal(decimal.NewFromInt(70000)), "got %s", fresh.Total)

	// One sold ticket and the full-set price is gone.
	touched := ComputePrice(80, unit, 1, testTiers())
	for _, seg := range touched.Segments {
		assert.NotEqual(t, string(models.DiscountFullSet), seg.Kind)
	}
	assert.True(t, touched.Total.GreaterThan(fresh.Total))
}

func TestComputePrice_FullSetAppliesAtMostOnce(t *testing.T) {
	unit := decimal.NewFromInt(1000)

	// 85 draws on a fresh campaign: one full set, then combos for the rest.
	quote := ComputePrice(85, unit, 0, testTiers())

	fullSets := 0
	for _, seg := range quote.Segments {
		if seg.Kind == string(models.DiscountFullSet) {
			fullSets++
			assert.Equal(t, 1, seg.Times)
		}
	}
	assert.Equal(t, 1, fullSets)
	expected := decimal.NewFromInt(70000 + 4700)
	assert.True(t, quote.Total.Equal(expected), "got %s", quote.Total)
}

func TestComputePrice_ZeroDraws(t *testing.T) {
	quote := ComputePrice(0, decimal.NewFromInt(1000), 0, testTiers())

	assert.True(t, quote.Total.IsZero())
	assert.True(t, quote.Regular.IsZero())
	assert.True(t, quote.Savings.IsZero())
	assert.Empty(t, quote.Segments)
}

func TestComputePrice_Deterministic(t *testing.T) {
	unit := decimal.NewFromInt(1500)

	first := ComputePrice(17, unit, 20, testTiers())
	for i := 0; i < 5; i++ {
		again := ComputePrice(17, unit, 20, testTiers())
		assert.True(t, first.Total.Equal(again.Total))
		assert.Equal(t, len(first.Segments), len(again.Segments))
	}
}

func TestComputePrice_SavingsNeverNegative(t *testing.T) {
	unit := decimal.NewFromInt(1000)
	for _, n := range []int{1, 4, 5, 9, 10, 15, 23, 80} {
		quote := ComputePrice(n, unit, 5, testTiers())
		assert.False(t, quote.Savings.IsNegative(), "draws=%d savings=%s", n, quote.Savings)
	}
}

func TestComputePrice_OverpricedTierSkipped(t *testing.T) {
	unit := decimal.NewFromInt(100)
	tiers := []models.DiscountTier{
		{ID: "tier-bad", CampaignID: "camp-1", Type: models.DiscountCombo, DrawCount: 5, Price: decimal.NewFromInt(600), Label: "bad 5-pack", IsActive: true},
	}

	quote := ComputePrice(5, unit, 5, tiers)

	assert.True(t, quote.Total.Equal(decimal.NewFromInt(500)), "got %s", quote.Total)
	assert.True(t, quote.Savings.IsZero(), "savings=%s", quote.Savings)
	require.Len(t, quote.Segments, 1)
	assert.Equal(t, "single", quote.Segments[0].Kind)
}

func TestComputePrice_OverpricedFullSetSkipped(t *testing.T) {
	unit := decimal.NewFromInt(100)
	tiers := []models.DiscountTier{
		{ID: "tier-full", CampaignID: "camp-1", Type: models.DiscountFullSet, DrawCount: 10, Price: decimal.NewFromInt(1200), Label: "full set", IsActive: true},
	}

	quote := ComputePrice(10, unit, 0, tiers)

	assert.True(t, quote.Total.Equal(decimal.NewFromInt(1000)), "got %s", quote.Total)
	assert.False(t, quote.Savings.IsNegative(), "savings=%s", quote.Savings)
	for _, seg := range quote.Segments {
		assert.NotEqual(t, string(models.DiscountFullSet), seg.Kind)
	}
}
