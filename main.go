package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kuji-store/config"
	"kuji-store/handlers"
	"kuji-store/models"
	"kuji-store/services"
	"kuji-store/store"
	"kuji-store/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = utils.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("connected to redis")
	} else {
		logger.Warn("redis disabled, push events stay process-local")
	}

	registry := services.NewPushRegistry()

	// With Redis the services publish onto the shared bus and the relay
	// feeds remote events back into the local registry. Without it events
	// go straight to local subscribers.
	var notifier services.Notifier = registry
	var relay *services.RedisRelay
	if redisClient != nil {
		relay = services.NewRedisRelay(redisClient, registry, logger)
		relay.Start(ctx)
		defer relay.Stop()
		notifier = relay
	}

	queue := services.NewQueueService(st, notifier, cfg.Queue, logger)
	draw := services.NewDrawService(st, queue, cfg.Draw, logger, nil)

	sweeper := services.NewSessionSweeper(st, queue, notifier, cfg.Queue, logger)
	sweeper.Start()
	defer sweeper.Stop()

	e := echo.New()
	handlers.Register(e, handlers.Deps{
		Store:    st,
		Queue:    queue,
		Draw:     draw,
		Registry: registry,
		Redis:    redisClient,
		Config:   cfg,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store, state is lost on restart")
		mem := store.NewMemory()
		seedDemoData(mem)
		return mem, nil
	default:
		pg, err := store.Connect(ctx, store.PostgresConfig{
			DSN:             cfg.Store.DSN,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("connected to postgres")
		return pg, nil
	}
}

// seedDemoData gives the memory driver something to play with.
func seedDemoData(mem *store.Memory) {
	mem.SeedCampaign(models.Campaign{
		ID:           "demo",
		Title:        "Demo Kuji Campaign",
		TotalTickets: 80,
		UnitPrice:    decimal.NewFromInt(800),
		Status:       models.CampaignActive,
		CreatedAt:    time.Now(),
	}, []models.PrizeVariant{
		{ID: "demo-a", CampaignID: "demo", Tier: "A", Rarity: models.RarityTop, Weight: 1, Stock: 2},
		{ID: "demo-b", CampaignID: "demo", Tier: "B", Rarity: 2, Weight: 3, Stock: 7},
		{ID: "demo-c", CampaignID: "demo", Tier: "C", Rarity: 3, Weight: 10, Stock: 30},
		{ID: "demo-d", CampaignID: "demo", Tier: "D", Rarity: 4, Weight: 20, Stock: 40},
		{ID: "demo-last", CampaignID: "demo", Tier: "LAST", Rarity: models.RarityTop, Weight: 1, Stock: 1, IsLastPrize: true},
	}, []models.DiscountTier{
		{ID: "demo-full", CampaignID: "demo", Type: models.DiscountFullSet, DrawCount: 80, Price: decimal.NewFromInt(57600), Label: "whole box", IsActive: true},
		{ID: "demo-10", CampaignID: "demo", Type: models.DiscountCombo, DrawCount: 10, Price: decimal.NewFromInt(7200), Label: "10-pack", IsActive: true},
		{ID: "demo-5", CampaignID: "demo", Type: models.DiscountCombo, DrawCount: 5, Price: decimal.NewFromInt(3800), Label: "5-pack", IsActive: true},
	})
	for _, u := range []string{"alice", "bob", "carol"} {
		mem.SeedWallet(u, decimal.NewFromInt(50000))
	}
}
