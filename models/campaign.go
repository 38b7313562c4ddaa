package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignDraft    CampaignStatus = "draft"
	CampaignActive   CampaignStatus = "active"
	CampaignSoldOut  CampaignStatus = "sold_out"
	CampaignArchived CampaignStatus = "archived"
)

// Campaign is a kuji product selling a fixed number of numbered tickets.
// SoldTickets never exceeds TotalTickets; the status flips to sold_out
// exactly when the two become equal.
type Campaign struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	TotalTickets int             `json:"total_tickets"`
	SoldTickets  int             `json:"sold_tickets"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Status       CampaignStatus  `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RemainingTickets returns how many ticket numbers are still unallocated.
func (c *Campaign) RemainingTickets() int {
	return c.TotalTickets - c.SoldTickets
}

// RarityTop marks the highest prize tier. Larger values are more common.
const RarityTop = 1

// PrizeVariant is one prize tier of a campaign. Stock is set by the catalog
// and immutable afterwards; the remaining count is derived from allocations.
type PrizeVariant struct {
	ID          string `json:"id"`
	CampaignID  string `json:"campaign_id"`
	Tier        string `json:"tier"`
	Rarity      int    `json:"rarity"`
	Weight      int    `json:"weight"`
	Stock       int    `json:"stock"`
	IsLastPrize bool   `json:"is_last_prize"`
}

// VariantStock pairs a variant with its derived remaining stock.
type VariantStock struct {
	PrizeVariant
	Remaining int `json:"remaining"`
}

type DiscountType string

const (
	DiscountFullSet DiscountType = "full_set"
	DiscountCombo   DiscountType = "combo"
)

// DiscountTier is pure pricing configuration, no runtime lifecycle.
type DiscountTier struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	Type       DiscountType    `json:"type"`
	DrawCount  int             `json:"draw_count"`
	Price      decimal.Decimal `json:"price"`
	Label      string          `json:"label"`
	IsActive   bool            `json:"is_active"`
}
