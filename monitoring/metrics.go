package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueWaiting = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_waiting_total",
			Help: "Current number of waiting entries per campaign",
		},
		[]string{"campaign_id"},
	)

	queueActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_active_total",
			Help: "Current number of active sessions per campaign",
		},
		[]string{"campaign_id"},
	)

	queueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_operations_total",
			Help: "Total queue operations",
		},
		[]string{"operation", "campaign_id", "status"},
	)

	drawsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draws_total",
			Help: "Total draw transactions",
		},
		[]string{"campaign_id", "status"},
	)

	drawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draw_duration_seconds",
			Help:    "Duration of draw transactions",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"campaign_id"},
	)

	sessionsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Total sessions expired by the sweeper",
		},
		[]string{"campaign_id"},
	)
)

// TrackQueueOperation counts a queue operation outcome.
func TrackQueueOperation(operation, campaignID, status string) {
	queueOperations.WithLabelValues(operation, campaignID, status).Inc()
}

// TrackDraw counts a draw transaction outcome.
func TrackDraw(campaignID, status string) {
	drawsTotal.WithLabelValues(campaignID, status).Inc()
}

// TrackDrawDuration records how long a draw transaction took.
func TrackDrawDuration(campaignID string, duration time.Duration) {
	drawDuration.WithLabelValues(campaignID).Observe(duration.Seconds())
}

// TrackExpiredSessions counts active sessions reclaimed by the sweeper.
func TrackExpiredSessions(campaignID string, n int) {
	sessionsExpired.WithLabelValues(campaignID).Add(float64(n))
}

// SetQueueDepth publishes the current queue shape of a campaign.
func SetQueueDepth(campaignID string, waiting, active int) {
	queueWaiting.WithLabelValues(campaignID).Set(float64(waiting))
	queueActive.WithLabelValues(campaignID).Set(float64(active))
}
