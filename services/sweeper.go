package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kuji-store/config"
	"kuji-store/models"
	"kuji-store/monitoring"
	"kuji-store/store"
)

// SessionSweeper periodically reclaims dead queue entries: active sessions
// that ran out their deadline or stopped heartbeating, and waiting entries
// whose clients silently disappeared. It is the only component that moves
// the queue forward without a user request.
type SessionSweeper struct {
	store    store.Store
	queue    *QueueService
	notify   Notifier
	cfg      config.QueueConfig
	logger   *zap.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewSessionSweeper(st store.Store, queue *QueueService, notify Notifier, cfg config.QueueConfig, logger *zap.Logger) *SessionSweeper {
	return &SessionSweeper{
		store:    st,
		queue:    queue,
		notify:   notify,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

func (w *SessionSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("session sweeper started", zap.Duration("interval", w.cfg.SweepInterval))
}

// Stop shuts the sweep loop down and waits for an in-flight pass to finish.
func (w *SessionSweeper) Stop() {
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("session sweeper stopped")
}

func (w *SessionSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Sweep(context.Background()); err != nil {
				w.logger.Error("sweep pass failed", zap.Error(err))
			}
		case <-w.stopChan:
			return
		}
	}
}

// Sweep runs one pass over every campaign with live entries. A failure on
// one campaign is logged and does not stop the others. Safe to call
// concurrently with user traffic and idempotent across overlapping passes.
func (w *SessionSweeper) Sweep(ctx context.Context) error {
	campaignIDs, err := w.store.CampaignsWithLiveEntries(ctx)
	if err != nil {
		return err
	}
	for _, id := range campaignIDs {
		if err := w.sweepCampaign(ctx, id); err != nil {
			w.logger.Error("campaign sweep failed",
				zap.String("campaign_id", id), zap.Error(err))
		}
	}
	return nil
}

func (w *SessionSweeper) sweepCampaign(ctx context.Context, campaignID string) error {
	var (
		expiredActive []models.QueueEntry
		remaining     []models.QueueEntry
		promo         *promotion
		changed       bool
	)
	err := w.store.Update(ctx, campaignID, func(tx store.Tx) error {
		expiredActive = expiredActive[:0]
		remaining = nil
		promo = nil
		changed = false

		live, err := tx.LiveEntries()
		if err != nil {
			return err
		}
		now := w.now()
		for i := range live {
			e := live[i]
			switch e.Status {
			case models.QueueActive:
				deadlinePassed := e.ExpiresAt != nil && now.After(*e.ExpiresAt)
				heartbeatLost := now.Sub(e.LastHeartbeat) > w.cfg.ActiveHeartbeatTimeout
				if deadlinePassed || heartbeatLost {
					e.Status = models.QueueExpired
					if err := tx.UpdateEntry(&e); err != nil {
						return err
					}
					expiredActive = append(expiredActive, e)
					changed = true
				}
			case models.QueueWaiting:
				// Waiting drop-outs go silently: the client is gone, there
				// is nobody to notify.
				if now.Sub(e.LastHeartbeat) > w.cfg.WaitingHeartbeatTimeout {
					e.Status = models.QueueExpired
					if err := tx.UpdateEntry(&e); err != nil {
						return err
					}
					changed = true
				}
			}
		}
		if !changed {
			return nil
		}
		if promo, err = w.queue.activateNextTx(tx); err != nil {
			return err
		}
		remaining, err = tx.LiveEntries()
		return err
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	for _, e := range expiredActive {
		w.notify.SendToUser(campaignID, e.UserID, models.NewSessionExpiredEvent(campaignID))
	}
	w.queue.emitPromotion(campaignID, promo)

	waiting, active := 0, 0
	for i := range remaining {
		switch remaining[i].Status {
		case models.QueueWaiting:
			waiting++
		case models.QueueActive:
			active++
		}
		w.notify.SendToUser(campaignID, remaining[i].UserID,
			models.NewQueueUpdateEvent(campaignID, i+1, len(remaining), remaining[i].Status))
	}
	monitoring.TrackExpiredSessions(campaignID, len(expiredActive))
	monitoring.SetQueueDepth(campaignID, waiting, active)
	return nil
}
