package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuji-store/models"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.SeedCampaign(models.Campaign{
		ID:           "camp-1",
		Title:        "test",
		TotalTickets: 5,
		UnitPrice:    decimal.NewFromInt(1000),
		Status:       models.CampaignActive,
	}, []models.PrizeVariant{
		{ID: "var-1", CampaignID: "camp-1", Tier: "A", Rarity: models.RarityTop, Weight: 1, Stock: 2},
		{ID: "var-2", CampaignID: "camp-1", Tier: "C", Rarity: 3, Weight: 5, Stock: 3},
	}, []models.DiscountTier{
		{ID: "tier-1", CampaignID: "camp-1", Type: models.DiscountCombo, DrawCount: 5, Price: decimal.NewFromInt(4500), IsActive: true},
	})
	m.SeedWallet("user-1", decimal.NewFromInt(10000))
	return m
}

func TestMemory_CampaignNotFound(t *testing.T) {
	m := NewMemory()

	err := m.View(context.Background(), "nope", func(tx Tx) error {
		_, err := tx.Campaign()
		return err
	})
	assert.ErrorIs(t, err, models.ErrCampaignNotFound)
}

func TestMemory_UpdateRollsBackOnError(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.Update(ctx, "camp-1", func(tx Tx) error {
		if err := tx.UpdateCampaign(5, models.CampaignSoldOut); err != nil {
			return err
		}
		if err := tx.InsertEntry(&models.QueueEntry{ID: "e-1", CampaignID: "camp-1", UserID: "user-1", Position: 1, Status: models.QueueWaiting}); err != nil {
			return err
		}
		if _, err := tx.DebitWallet("user-1", decimal.NewFromInt(5000)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = m.View(ctx, "camp-1", func(tx Tx) error {
		c, err := tx.Campaign()
		require.NoError(t, err)
		assert.Equal(t, 0, c.SoldTickets)
		assert.Equal(t, models.CampaignActive, c.Status)

		_, err = tx.LiveEntryByUser("user-1")
		assert.ErrorIs(t, err, models.ErrEntryNotFound)

		bal, err := tx.WalletBalance("user-1")
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.NewFromInt(10000)))
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_LiveEntriesOrderedByPosition(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Update(ctx, "camp-1", func(tx Tx) error {
		for i, status := range []models.QueueEntryStatus{
			models.QueueWaiting, models.QueueCompleted, models.QueueActive, models.QueueWaiting,
		} {
			pos, err := tx.NextPosition()
			require.NoError(t, err)
			assert.Equal(t, int64(i+1), pos)
			if err := tx.InsertEntry(&models.QueueEntry{
				ID: string(rune('a' + i)), CampaignID: "camp-1",
				UserID: string(rune('u' + i)), Position: pos, Status: status,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = m.View(ctx, "camp-1", func(tx Tx) error {
		live, err := tx.LiveEntries()
		require.NoError(t, err)
		require.Len(t, live, 3, "completed entries are not live")
		assert.Equal(t, int64(1), live[0].Position)
		assert.Equal(t, int64(3), live[1].Position)
		assert.Equal(t, int64(4), live[2].Position)
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_InsertAllocationsRejectsTakenNumber(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Update(ctx, "camp-1", func(tx Tx) error {
		return tx.InsertAllocations([]models.TicketAllocation{
			{ID: "a-1", CampaignID: "camp-1", VariantID: "var-2", UserID: "user-1", TicketNumber: 2},
		})
	})
	require.NoError(t, err)

	err = m.Update(ctx, "camp-1", func(tx Tx) error {
		return tx.InsertAllocations([]models.TicketAllocation{
			{ID: "a-2", CampaignID: "camp-1", VariantID: "var-2", UserID: "user-1", TicketNumber: 2},
		})
	})
	assert.ErrorIs(t, err, models.ErrTicketAlreadyAllocated)
}

func TestMemory_VariantsDeriveRemainingStock(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Update(ctx, "camp-1", func(tx Tx) error {
		return tx.InsertAllocations([]models.TicketAllocation{
			{ID: "a-1", CampaignID: "camp-1", VariantID: "var-2", UserID: "user-1", TicketNumber: 1},
			{ID: "a-2", CampaignID: "camp-1", VariantID: "var-2", UserID: "user-1", TicketNumber: 2},
		})
	})
	require.NoError(t, err)

	err = m.View(ctx, "camp-1", func(tx Tx) error {
		variants, err := tx.Variants()
		require.NoError(t, err)
		byID := make(map[string]models.VariantStock)
		for _, v := range variants {
			byID[v.ID] = v
		}
		assert.Equal(t, 2, byID["var-1"].Remaining)
		assert.Equal(t, 1, byID["var-2"].Remaining)
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_RecentRaritiesNewestFirst(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Update(ctx, "camp-1", func(tx Tx) error {
		return tx.InsertAllocations([]models.TicketAllocation{
			{ID: "a-1", CampaignID: "camp-1", VariantID: "var-1", UserID: "user-1", TicketNumber: 1},
			{ID: "a-2", CampaignID: "camp-1", VariantID: "var-2", UserID: "user-1", TicketNumber: 2},
			{ID: "a-3", CampaignID: "camp-1", VariantID: "var-2", UserID: "other", TicketNumber: 3},
			{ID: "a-4", CampaignID: "camp-1", VariantID: "var-2", UserID: "user-1", TicketNumber: 4},
		})
	})
	require.NoError(t, err)

	err = m.View(ctx, "camp-1", func(tx Tx) error {
		recent, err := tx.RecentRarities("user-1", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, 3, recent[0], "newest first, other users excluded")
		assert.Equal(t, 3, recent[1])

		all, err := tx.RecentRarities("user-1", 10)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 3, models.RarityTop}, all)
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_WalletOps(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Update(ctx, "camp-1", func(tx Tx) error {
		_, err := tx.WalletBalance("nobody")
		assert.ErrorIs(t, err, models.ErrWalletNotFound)

		bal, err := tx.DebitWallet("user-1", decimal.NewFromInt(3000))
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.NewFromInt(7000)))

		bal, err = tx.CreditWallet("user-1", decimal.NewFromInt(500))
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.NewFromInt(7500)))

		return tx.AppendLedger(&models.LedgerEntry{
			ID: "l-1", UserID: "user-1", CampaignID: "camp-1",
			Kind: models.LedgerDebit, Amount: decimal.NewFromInt(3000), CreatedAt: time.Now(),
		})
	})
	require.NoError(t, err)
}

func TestMemory_CampaignsWithLiveEntries(t *testing.T) {
	m := seedMemory(t)
	m.SeedCampaign(models.Campaign{ID: "camp-2", TotalTickets: 5, UnitPrice: decimal.NewFromInt(100), Status: models.CampaignActive}, nil, nil)
	ctx := context.Background()

	ids, err := m.CampaignsWithLiveEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	err = m.Update(ctx, "camp-2", func(tx Tx) error {
		return tx.InsertEntry(&models.QueueEntry{ID: "e-1", CampaignID: "camp-2", UserID: "u", Position: 1, Status: models.QueueWaiting})
	})
	require.NoError(t, err)

	ids, err = m.CampaignsWithLiveEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"camp-2"}, ids)
}
