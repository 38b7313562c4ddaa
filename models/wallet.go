package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	LedgerDebit  LedgerKind = "debit"
	LedgerCredit LedgerKind = "credit"
)

// Wallet holds a user's point balance. Top-up flows live outside the core;
// debits and refund credits happen inside the draw transaction.
type Wallet struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// LedgerEntry is an append-only record of a wallet movement.
type LedgerEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Kind       LedgerKind      `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Ref        string          `json:"ref,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
