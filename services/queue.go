package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kuji-store/config"
	"kuji-store/models"
	"kuji-store/monitoring"
	"kuji-store/store"
)

// QueueService is the admission queue: it arbitrates which user currently
// holds the right to draw on a campaign. All ordering decisions happen by
// comparing position values inside a single store transaction.
type QueueService struct {
	store  store.Store
	notify Notifier
	cfg    config.QueueConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewQueueService(st store.Store, notify Notifier, cfg config.QueueConfig, logger *zap.Logger) *QueueService {
	return &QueueService{
		store:  st,
		notify: notify,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Join enrolls a user in a campaign's queue. Idempotent: a caller with a
// live entry gets that entry back. When nobody else is waiting or active the
// entry is activated immediately.
func (s *QueueService) Join(ctx context.Context, campaignID, userID string) (*models.QueueEntry, error) {
	var (
		entry   *models.QueueEntry
		created bool
	)
	err := s.store.Update(ctx, campaignID, func(tx store.Tx) error {
		campaign, err := tx.Campaign()
		if err != nil {
			return err
		}
		if campaign.Status != models.CampaignActive {
			return models.ErrCampaignNotActive
		}

		existing, err := tx.LiveEntryByUser(userID)
		if err == nil {
			entry = existing
			return nil
		}
		if !errors.Is(err, models.ErrEntryNotFound) {
			return err
		}

		live, err := tx.LiveEntries()
		if err != nil {
			return err
		}
		position, err := tx.NextPosition()
		if err != nil {
			return err
		}

		now := s.now()
		e := models.QueueEntry{
			ID:            uuid.NewString(),
			CampaignID:    campaignID,
			UserID:        userID,
			Position:      position,
			Status:        models.QueueWaiting,
			JoinedAt:      now,
			LastHeartbeat: now,
		}
		if len(live) == 0 {
			activatedAt := now
			expiresAt := now.Add(s.cfg.SessionTTL)
			e.Status = models.QueueActive
			e.ActivatedAt = &activatedAt
			e.ExpiresAt = &expiresAt
		}
		if err := tx.InsertEntry(&e); err != nil {
			return err
		}
		entry = &e
		created = true
		return nil
	})
	if err != nil {
		monitoring.TrackQueueOperation("join", campaignID, "error")
		return nil, err
	}

	if created && entry.Status == models.QueueActive {
		s.notify.SendToUser(campaignID, userID, models.NewYourTurnEvent(campaignID, *entry.ExpiresAt))
	}
	monitoring.TrackQueueOperation("join", campaignID, "success")
	return entry, nil
}

// Status returns the caller's place in line. Position is the rank among
// live entries, so the active user reads 1 and the first waiting user 2.
func (s *QueueService) Status(ctx context.Context, campaignID, userID string) (*models.QueueStatus, error) {
	var status models.QueueStatus
	err := s.store.View(ctx, campaignID, func(tx store.Tx) error {
		live, err := tx.LiveEntries()
		if err != nil {
			return err
		}
		status = models.QueueStatus{TotalInQueue: len(live)}
		for i := range live {
			if live[i].UserID == userID {
				status.InQueue = true
				status.Status = live[i].Status
				status.Position = i + 1
				status.ExpiresAt = live[i].ExpiresAt
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// Heartbeat refreshes the caller's liveness mark. Missing live entries are
// reported so clients learn they fell out of the queue.
func (s *QueueService) Heartbeat(ctx context.Context, campaignID, userID string) error {
	return s.store.Update(ctx, campaignID, func(tx store.Tx) error {
		entry, err := tx.LiveEntryByUser(userID)
		if err != nil {
			return err
		}
		entry.LastHeartbeat = s.now()
		return tx.UpdateEntry(entry)
	})
}

// Leave marks the caller's live entry as left. Leaving an active session
// hands the slot to the next waiting user. Leaving without a live entry is
// a no-op.
func (s *QueueService) Leave(ctx context.Context, campaignID, userID string) error {
	var promo *promotion
	err := s.store.Update(ctx, campaignID, func(tx store.Tx) error {
		entry, err := tx.LiveEntryByUser(userID)
		if errors.Is(err, models.ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		wasActive := entry.Status == models.QueueActive
		entry.Status = models.QueueLeft
		if err := tx.UpdateEntry(entry); err != nil {
			return err
		}
		if wasActive {
			promo, err = s.activateNextTx(tx)
			return err
		}
		return nil
	})
	if err != nil {
		monitoring.TrackQueueOperation("leave", campaignID, "error")
		return err
	}
	s.emitPromotion(campaignID, promo)
	monitoring.TrackQueueOperation("leave", campaignID, "success")
	return nil
}

// CompleteSession finishes the caller's active session and promotes the
// next waiting user. The draw transaction calls the in-tx variant instead
// so completion commits atomically with the allocation.
func (s *QueueService) CompleteSession(ctx context.Context, campaignID, userID string) error {
	var promo *promotion
	err := s.store.Update(ctx, campaignID, func(tx store.Tx) error {
		var err error
		promo, err = s.completeSessionTx(tx, userID)
		return err
	})
	if err != nil {
		return err
	}
	s.emitPromotion(campaignID, promo)
	return nil
}

// ActivateNext promotes the oldest waiting entry if no active entry exists.
// Idempotent: a no-op when someone is already active or nobody waits.
func (s *QueueService) ActivateNext(ctx context.Context, campaignID string) error {
	var promo *promotion
	err := s.store.Update(ctx, campaignID, func(tx store.Tx) error {
		var err error
		promo, err = s.activateNextTx(tx)
		return err
	})
	if err != nil {
		return err
	}
	s.emitPromotion(campaignID, promo)
	return nil
}

func (s *QueueService) completeSessionTx(tx store.Tx, userID string) (*promotion, error) {
	entry, err := tx.LiveEntryByUser(userID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.QueueActive {
		return nil, models.ErrNotYourTurn
	}
	entry.Status = models.QueueCompleted
	if err := tx.UpdateEntry(entry); err != nil {
		return nil, err
	}
	return s.activateNextTx(tx)
}

// promotion carries the queue-state changes of an activateNext pass out of
// the transaction, so pushes only fire after a successful commit.
type promotion struct {
	promoted *models.QueueEntry
	soldOut  bool
}

func (s *QueueService) activateNextTx(tx store.Tx) (*promotion, error) {
	live, err := tx.LiveEntries()
	if err != nil {
		return nil, err
	}
	for i := range live {
		if live[i].Status == models.QueueActive {
			return nil, nil
		}
	}

	campaign, err := tx.Campaign()
	if err != nil {
		return nil, err
	}
	if campaign.SoldTickets >= campaign.TotalTickets {
		// Nothing left to draw: drain the line instead of promoting into a
		// session that can only fail.
		for i := range live {
			live[i].Status = models.QueueExpired
			if err := tx.UpdateEntry(&live[i]); err != nil {
				return nil, err
			}
		}
		return &promotion{soldOut: true}, nil
	}

	for i := range live {
		if live[i].Status != models.QueueWaiting {
			continue
		}
		now := s.now()
		expiresAt := now.Add(s.cfg.SessionTTL)
		live[i].Status = models.QueueActive
		live[i].ActivatedAt = &now
		live[i].ExpiresAt = &expiresAt
		live[i].LastHeartbeat = now
		if err := tx.UpdateEntry(&live[i]); err != nil {
			return nil, err
		}
		promoted := live[i]
		return &promotion{promoted: &promoted}, nil
	}
	return nil, nil
}

func (s *QueueService) emitPromotion(campaignID string, promo *promotion) {
	if promo == nil {
		return
	}
	if promo.soldOut {
		s.notify.Broadcast(campaignID, models.NewSoldOutEvent(campaignID))
		return
	}
	if promo.promoted != nil {
		s.notify.SendToUser(campaignID, promo.promoted.UserID,
			models.NewYourTurnEvent(campaignID, *promo.promoted.ExpiresAt))
	}
}
