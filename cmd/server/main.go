package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/eventdesk/desk-engine/internal/config"
	"github.com/eventdesk/desk-engine/internal/correlation"
	"github.com/eventdesk/desk-engine/internal/eventlog"
	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/logging"
	"github.com/eventdesk/desk-engine/internal/marketstate"
	"github.com/eventdesk/desk-engine/internal/metrics"
	"github.com/eventdesk/desk-engine/internal/model"
	"github.com/eventdesk/desk-engine/internal/refresh"
	"github.com/eventdesk/desk-engine/internal/store"
	"github.com/eventdesk/desk-engine/internal/trade"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	_, logCloser := logging.Setup(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Exchange client ---
	key, err := kalshi.LoadPrivateKey(cfg.KeyFile)
	if err != nil {
		slog.Error("loading API key failed", "file", cfg.KeyFile, "err", err)
		os.Exit(1)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = kalshi.BaseURLFor(cfg.Env)
	}
	client := kalshi.NewClient(baseURL, kalshi.NewSigner(cfg.KeyID, key))
	slog.Info("exchange client ready", "env", cfg.Env, "base_url", baseURL, "event", cfg.EventTicker)

	// --- Initialize store ---
	st, cleanup := openStore(ctx, cfg)
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Market state (warm start from the last saved snapshot) ---
	cache := marketstate.New()
	if snap, err := st.LoadSnapshot(ctx, cfg.EventTicker); err == nil {
		cache.Store(snap)
		slog.Info("warm start from saved snapshot", "taken_at", snap.TakenAt, "markets", len(snap.Quotes))
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("loading saved snapshot failed", "err", err)
	}

	// --- Event log + WebSocket hub ---
	events := eventlog.New(eventlog.DefaultCapacity)
	wsHub := trade.NewWSHub()
	events.OnAppend(wsHub.PublishEvent)
	go wsHub.Run(ctx)

	// --- Trade service ---
	limiter := correlation.NewPositionLimiter(cfg.MaxPositionPerMarket, cfg.MaxEventExposure)
	tradeSvc := trade.NewService(client, cache, events, limiter, trade.Config{
		EventTicker: cfg.EventTicker,
		MaxQuoteAge: cfg.MaxQuoteAge(),
	})

	// --- Refresh cycles ---
	mirror := store.NewMirror(st)
	go mirror.Run(ctx)

	poller := refresh.NewPoller(client, cache, events, refresh.Config{
		EventTicker:     cfg.EventTicker,
		QuoteInterval:   cfg.QuoteInterval(),
		RestingInterval: cfg.RestingInterval(),
	})
	poller.OnSnapshot(func(_ context.Context, snap *model.Snapshot) {
		mirror.Offer(snap)
		wsHub.PublishStatus(tradeSvc)
	})

	pollerDone := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(pollerDone)
	}()
	events.Info(fmt.Sprintf("Desk engine started for %s (%s)", cfg.EventTicker, cfg.Env), nil)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"desk-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// WebSocket endpoint for event log entries and snapshot updates.
		r.Get("/ws", wsHub.HandleWS)

		tradeSvc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("desk-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down desk-engine...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		slog.Warn("refresh cycles did not stop before the shutdown deadline")
	}
	slog.Info("desk-engine stopped")
}

// openStore picks the snapshot store: PostgreSQL when DATABASE_URL is set,
// in-memory otherwise, wrapped with Redis when REDIS_URL is set.
func openStore(ctx context.Context, cfg config.Config) (store.Store, []func()) {
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (snapshots will not persist)")
		st = store.NewMemoryStore()
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.SnapshotTTL())
		slog.Info("Redis cache enabled", "ttl", cfg.SnapshotTTL())
	}

	return st, cleanup
}
