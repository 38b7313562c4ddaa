package models

import (
	"time"
)

// TicketAllocation records one drawn ticket. Rows are append-only and
// TicketNumber is unique per campaign.
type TicketAllocation struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	VariantID    string    `json:"variant_id"`
	UserID       string    `json:"user_id"`
	TicketNumber int       `json:"ticket_number"`
	Tier         string    `json:"tier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
