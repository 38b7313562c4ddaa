package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kuji-store/models"
)

const relayChannelPrefix = "push:"

// relayEnvelope is the wire form of a push on the Redis bus. An empty
// UserID means broadcast.
type relayEnvelope struct {
	UserID string       `json:"user_id,omitempty"`
	Event  models.Event `json:"event"`
}

// RedisRelay fans push events out across processes. Every node publishes
// its events onto a per-campaign Redis channel and feeds everything it
// hears back into its local registry, so a user's stream works no matter
// which node their queue activity lands on.
type RedisRelay struct {
	client   *redis.Client
	local    *PushRegistry
	logger   *zap.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRedisRelay(client *redis.Client, local *PushRegistry, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:   client,
		local:    local,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// SendToUser publishes a single-user event onto the campaign channel.
// Delivery is best effort: a publish failure is logged, never returned.
func (r *RedisRelay) SendToUser(campaignID, userID string, ev models.Event) {
	r.publish(campaignID, relayEnvelope{UserID: userID, Event: ev})
}

// Broadcast publishes an event for every subscriber of the campaign.
func (r *RedisRelay) Broadcast(campaignID string, ev models.Event) {
	r.publish(campaignID, relayEnvelope{Event: ev})
}

func (r *RedisRelay) publish(campaignID string, env relayEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		r.logger.Error("marshal push envelope failed", zap.Error(err))
		return
	}
	if err := r.client.Publish(context.Background(), relayChannelPrefix+campaignID, payload).Err(); err != nil {
		r.logger.Error("publish push failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

// Start subscribes to all campaign channels and begins feeding the local
// registry.
func (r *RedisRelay) Start(ctx context.Context) {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	r.wg.Add(1)
	go r.run(pubsub)
	r.logger.Info("push relay started")
}

// Stop closes the subscription and waits for the dispatch loop to drain.
func (r *RedisRelay) Stop() {
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("push relay stopped")
}

func (r *RedisRelay) run(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.dispatch(msg)
		case <-r.stopChan:
			return
		}
	}
}

func (r *RedisRelay) dispatch(msg *redis.Message) {
	campaignID := strings.TrimPrefix(msg.Channel, relayChannelPrefix)
	var env relayEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warn("drop malformed push payload",
			zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if env.UserID != "" {
		r.local.SendToUser(campaignID, env.UserID, env.Event)
		return
	}
	r.local.Broadcast(campaignID, env.Event)
}
