package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"kuji-store/models"
	"kuji-store/store"
)

type CampaignHandler struct {
	store store.Store
}

func NewCampaignHandler(st store.Store) *CampaignHandler {
	return &CampaignHandler{store: st}
}

// Get returns the public campaign snapshot: the campaign itself, prize
// variants with remaining stock, active discount tiers and the current
// queue size.
func (h *CampaignHandler) Get(c echo.Context) error {
	campaignID := c.PathParam("campaignId")

	var (
		campaign *models.Campaign
		variants []models.VariantStock
		tiers    []models.DiscountTier
		queued   int
	)
	err := h.store.View(c.Request().Context(), campaignID, func(tx store.Tx) error {
		var err error
		if campaign, err = tx.Campaign(); err != nil {
			return err
		}
		if variants, err = tx.Variants(); err != nil {
			return err
		}
		all, err := tx.DiscountTiers()
		if err != nil {
			return err
		}
		for _, t := range all {
			if t.IsActive {
				tiers = append(tiers, t)
			}
		}
		live, err := tx.LiveEntries()
		if err != nil {
			return err
		}
		queued = len(live)
		return nil
	})
	if err != nil {
		return apiError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"campaign":       campaign,
		"variants":       variants,
		"discount_tiers": tiers,
		"queue_size":     queued,
	})
}
