package models

import (
	"time"
)

type EventType string

const (
	EventYourTurn       EventType = "your_turn"
	EventQueueUpdate    EventType = "queue_update"
	EventSessionExpired EventType = "session_expired"
	EventSoldOut        EventType = "sold_out"
	EventReplaced       EventType = "replaced"
)

// Event is a best-effort push notification. Queue state in the store stays
// authoritative; clients that miss an event reconcile via the status endpoint.
type Event struct {
	Type       EventType      `json:"type"`
	CampaignID string         `json:"campaign_id"`
	Data       map[string]any `json:"data,omitempty"`
}

func NewYourTurnEvent(campaignID string, expiresAt time.Time) Event {
	return Event{
		Type:       EventYourTurn,
		CampaignID: campaignID,
		Data: map[string]any{
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		},
	}
}

func NewQueueUpdateEvent(campaignID string, position, total int, status QueueEntryStatus) Event {
	return Event{
		Type:       EventQueueUpdate,
		CampaignID: campaignID,
		Data: map[string]any{
			"position":       position,
			"total_in_queue": total,
			"status":         string(status),
		},
	}
}

func NewSessionExpiredEvent(campaignID string) Event {
	return Event{Type: EventSessionExpired, CampaignID: campaignID}
}

func NewSoldOutEvent(campaignID string) Event {
	return Event{Type: EventSoldOut, CampaignID: campaignID}
}

func NewReplacedEvent(campaignID string) Event {
	return Event{Type: EventReplaced, CampaignID: campaignID}
}
