package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"kuji-store/models"
	"kuji-store/services"
)

type DrawHandler struct {
	draw *services.DrawService
}

func NewDrawHandler(draw *services.DrawService) *DrawHandler {
	return &DrawHandler{draw: draw}
}

func (h *DrawHandler) Draw(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c)
	}
	campaignID := c.PathParam("campaignId")

	var req services.DrawRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.draw.Draw(c.Request().Context(), campaignID, uid, req)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// PricePreview quotes a draw without performing it. Open to anyone, no
// queue position required.
func (h *DrawHandler) PricePreview(c echo.Context) error {
	campaignID := c.PathParam("campaignId")

	req := services.DrawRequest{
		DiscountTierID: c.QueryParam("tier_id"),
	}
	if raw := c.QueryParam("draws"); raw != "" {
		draws, err := strconv.Atoi(raw)
		if err != nil || draws <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "draws must be a positive integer"})
		}
		req.DrawCount = draws
	}
	if req.DrawCount == 0 && req.DiscountTierID == "" {
		return apiError(c, models.ErrEmptyDrawRequest)
	}

	quote, err := h.draw.Preview(c.Request().Context(), campaignID, req)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}
