// Package handlers exposes the HTTP API. Identity arrives as an X-User-ID
// header set by the edge gateway; the core trusts it and performs no
// authentication of its own.
package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"kuji-store/models"
)

const userIDHeader = "X-User-ID"

func userID(c echo.Context) string {
	return c.Request().Header.Get(userIDHeader)
}

// apiError maps domain errors onto HTTP responses. Validation failures are
// 400, state conflicts that a retry might resolve are 409, missing
// resources 404 and an underfunded wallet 402.
func apiError(c echo.Context, err error) error {
	var insufficient *models.InsufficientFundsError
	if errors.As(err, &insufficient) {
		return c.JSON(http.StatusPaymentRequired, map[string]any{
			"error":     err.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidTicketRange),
		errors.Is(err, models.ErrEmptyDrawRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrCampaignNotFound),
		errors.Is(err, models.ErrTierNotFound),
		errors.Is(err, models.ErrEntryNotFound),
		errors.Is(err, models.ErrWalletNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrCampaignNotActive),
		errors.Is(err, models.ErrNotYourTurn),
		errors.Is(err, models.ErrTicketAlreadyAllocated),
		errors.Is(err, models.ErrPoolExhausted):
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "missing " + userIDHeader + " header",
	})
}
