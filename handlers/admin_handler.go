package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"kuji-store/models"
	"kuji-store/store"
)

const adminTokenHeader = "X-Admin-Token"

type AdminHandler struct {
	store store.Store
	token string
}

func NewAdminHandler(st store.Store, token string) *AdminHandler {
	return &AdminHandler{store: st, token: token}
}

func (h *AdminHandler) authorized(c echo.Context) bool {
	return h.token != "" && c.Request().Header.Get(adminTokenHeader) == h.token
}

// GetQueueDashboard reports queue shape and sales progress for every
// campaign that currently has live queue entries.
func (h *AdminHandler) GetQueueDashboard(c echo.Context) error {
	if !h.authorized(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "admin access required"})
	}
	ctx := c.Request().Context()

	campaignIDs, err := h.store.CampaignsWithLiveEntries(ctx)
	if err != nil {
		return apiError(c, err)
	}

	dashboard := []map[string]any{}
	for _, id := range campaignIDs {
		var row map[string]any
		err := h.store.View(ctx, id, func(tx store.Tx) error {
			campaign, err := tx.Campaign()
			if err != nil {
				return err
			}
			live, err := tx.LiveEntries()
			if err != nil {
				return err
			}
			waiting, active := 0, 0
			for _, e := range live {
				switch e.Status {
				case models.QueueWaiting:
					waiting++
				case models.QueueActive:
					active++
				}
			}
			row = map[string]any{
				"campaign_id":   id,
				"title":         campaign.Title,
				"status":        campaign.Status,
				"sold_tickets":  campaign.SoldTickets,
				"total_tickets": campaign.TotalTickets,
				"waiting":       waiting,
				"active":        active,
			}
			return nil
		})
		if err != nil {
			continue
		}
		dashboard = append(dashboard, row)
	}

	return c.JSON(http.StatusOK, map[string]any{"campaigns": dashboard})
}
