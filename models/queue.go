package models

import (
	"time"
)

type QueueEntryStatus string

const (
	QueueWaiting   QueueEntryStatus = "waiting"
	QueueActive    QueueEntryStatus = "active"
	QueueCompleted QueueEntryStatus = "completed"
	QueueExpired   QueueEntryStatus = "expired"
	QueueLeft      QueueEntryStatus = "left"
)

// QueueEntry is one user's place in a campaign's admission queue.
// Position strictly increases per campaign and defines FIFO order; at most
// one entry per campaign is active at any time.
type QueueEntry struct {
	ID            string           `json:"id"`
	CampaignID    string           `json:"campaign_id"`
	UserID        string           `json:"user_id"`
	Position      int64            `json:"position"`
	Status        QueueEntryStatus `json:"status"`
	JoinedAt      time.Time        `json:"joined_at"`
	ActivatedAt   *time.Time       `json:"activated_at,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	LastHeartbeat time.Time        `json:"last_heartbeat"`
}

// Live reports whether the entry still occupies a queue slot.
func (e *QueueEntry) Live() bool {
	return e.Status == QueueWaiting || e.Status == QueueActive
}

// QueueStatus is the polling view returned to a user. Position is the rank
// among live entries, not the raw monotonic position value.
type QueueStatus struct {
	InQueue      bool             `json:"in_queue"`
	Status       QueueEntryStatus `json:"status,omitempty"`
	Position     int              `json:"position"`
	TotalInQueue int              `json:"total_in_queue"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
}
