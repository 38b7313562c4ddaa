package services

import (
	"sync"

	"kuji-store/models"
)

// Notifier delivers best-effort push events. The queue in the store stays
// authoritative; a dropped event is recovered by the client polling status.
type Notifier interface {
	SendToUser(campaignID, userID string, ev models.Event)
	Broadcast(campaignID string, ev models.Event)
}

const subscriptionBuffer = 8

// Subscription is one user's live delivery channel for a campaign. Events
// arrive on C; the channel is closed when the subscription is superseded or
// cancelled.
type Subscription struct {
	C chan models.Event

	campaignID string
	userID     string
	registry   *PushRegistry

	mu     sync.Mutex
	closed bool
}

// Close unregisters the subscription and closes C. Safe to call more than
// once.
func (s *Subscription) Close() {
	s.registry.unregister(s)
}

// PushRegistry tracks at most one live delivery channel per (campaign,
// user). It is per-process, ephemeral and non-authoritative: after a restart
// clients reconnect and reconcile via the status endpoint.
type PushRegistry struct {
	mu   sync.Mutex
	subs map[string]map[string]*Subscription // campaignID -> userID -> sub
}

func NewPushRegistry() *PushRegistry {
	return &PushRegistry{
		subs: make(map[string]map[string]*Subscription),
	}
}

// Register opens a delivery channel for (campaignID, userID). An existing
// channel for the pair is superseded: it receives a replaced event and is
// closed.
func (r *PushRegistry) Register(campaignID, userID string) *Subscription {
	sub := &Subscription{
		C:          make(chan models.Event, subscriptionBuffer),
		campaignID: campaignID,
		userID:     userID,
		registry:   r,
	}

	r.mu.Lock()
	byUser, ok := r.subs[campaignID]
	if !ok {
		byUser = make(map[string]*Subscription)
		r.subs[campaignID] = byUser
	}
	old := byUser[userID]
	byUser[userID] = sub
	r.mu.Unlock()

	if old != nil {
		old.deliver(models.NewReplacedEvent(campaignID))
		old.closeChannel()
	}
	return sub
}

func (r *PushRegistry) unregister(sub *Subscription) {
	r.mu.Lock()
	if byUser, ok := r.subs[sub.campaignID]; ok && byUser[sub.userID] == sub {
		delete(byUser, sub.userID)
		if len(byUser) == 0 {
			delete(r.subs, sub.campaignID)
		}
	}
	r.mu.Unlock()
	sub.closeChannel()
}

// SendToUser delivers an event to the user's channel if one exists. Silently
// drops otherwise, or when the channel buffer is full.
func (r *PushRegistry) SendToUser(campaignID, userID string, ev models.Event) {
	r.mu.Lock()
	var sub *Subscription
	if byUser, ok := r.subs[campaignID]; ok {
		sub = byUser[userID]
	}
	r.mu.Unlock()

	if sub != nil {
		sub.deliver(ev)
	}
}

// Broadcast fans an event out to every registered channel of a campaign.
func (r *PushRegistry) Broadcast(campaignID string, ev models.Event) {
	r.mu.Lock()
	targets := make([]*Subscription, 0, len(r.subs[campaignID]))
	for _, sub := range r.subs[campaignID] {
		targets = append(targets, sub)
	}
	r.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(ev)
	}
}

// deliver does a non-blocking send. The subscription mutex orders sends
// against closeChannel, so a concurrent supersede can never close the
// channel mid-send; events to a closed subscription are dropped.
func (s *Subscription) deliver(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.C <- ev:
	default:
	}
}

func (s *Subscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.C)
}
