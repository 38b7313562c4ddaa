package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// State conflicts abort the transaction cleanly; the caller may retry with
// different input. Validation errors are rejected before any transaction.
var (
	ErrCampaignNotFound       = errors.New("campaign: not found")
	ErrCampaignNotActive      = errors.New("campaign: not active")
	ErrPoolExhausted          = errors.New("draw: prize pool exhausted")
	ErrInvalidTicketRange     = errors.New("draw: ticket number out of range or duplicated")
	ErrTicketAlreadyAllocated = errors.New("draw: ticket already allocated")
	ErrNotYourTurn            = errors.New("draw: caller does not hold the active queue session")
	ErrEmptyDrawRequest       = errors.New("draw: request contains no tickets")
	ErrTierNotFound           = errors.New("pricing: discount tier not found")
	ErrEntryNotFound          = errors.New("queue: no live entry for user")
	ErrWalletNotFound         = errors.New("wallet: not found")
)

// InsufficientFundsError reports the required versus available amounts.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("wallet: insufficient funds: required %s, available %s",
		e.Required.String(), e.Available.String())
}
