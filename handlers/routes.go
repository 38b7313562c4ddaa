package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"kuji-store/config"
	"kuji-store/security"
	"kuji-store/services"
	"kuji-store/store"
	"kuji-store/utils"
)

// Deps bundles everything the HTTP layer needs. Redis may be nil; the rate
// limiter then passes everything through and health reporting skips it.
type Deps struct {
	Store    store.Store
	Queue    *services.QueueService
	Draw     *services.DrawService
	Registry *services.PushRegistry
	Redis    *redis.Client
	Config   *config.Config
}

// Register wires all routes onto the router.
func Register(e *echo.Echo, deps Deps) {
	queueHandler := NewQueueHandler(deps.Queue)
	drawHandler := NewDrawHandler(deps.Draw)
	streamHandler := NewStreamHandler(deps.Registry)
	campaignHandler := NewCampaignHandler(deps.Store)
	adminHandler := NewAdminHandler(deps.Store, deps.Config.Server.AdminToken)
	limiter := security.NewRateLimiter(deps.Redis)

	api := e.Group("/api")

	campaigns := api.Group("/campaigns/:campaignId")
	campaigns.GET("", campaignHandler.Get)
	campaigns.GET("/price-preview", drawHandler.PricePreview)
	campaigns.GET("/stream", streamHandler.Stream)

	campaigns.POST("/queue/join", queueHandler.Join)
	campaigns.GET("/queue/status", queueHandler.Status)
	campaigns.POST("/queue/heartbeat", queueHandler.Heartbeat)
	campaigns.POST("/queue/leave", queueHandler.Leave)

	campaigns.POST("/draw", drawHandler.Draw,
		limiter.PerUserLimit("draw", deps.Config.Draw.RateLimitPerMinute))

	api.GET("/admin/queue-dashboard", adminHandler.GetQueueDashboard)

	e.GET("/healthz", healthz(deps.Redis))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func healthz(redisClient *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		if redisClient != nil {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
