package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/veridianlabs/leadvault/internal/adapters/api"
	"github.com/veridianlabs/leadvault/internal/adapters/audit"
	"github.com/veridianlabs/leadvault/internal/adapters/repository"
	"github.com/veridianlabs/leadvault/internal/config"
	"github.com/veridianlabs/leadvault/internal/core/ports"
	"github.com/veridianlabs/leadvault/internal/core/services"
	"github.com/veridianlabs/leadvault/internal/ratelimit"
	"github.com/veridianlabs/leadvault/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// The credential store always lives in the database; PRIMARY_ENABLED
	// only controls whether the lead pipeline uses it as a storage tier.
	// The process starts even when the database is down: submissions land
	// in the fallback tiers until it recovers, and credentialed operations
	// fail closed.
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("unable to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Printf("Warning: could not ping database: %v\n", err)
	}

	repo := repository.NewPostgresRepository(db)

	var primary ports.LeadRepository
	if cfg.PrimaryEnabled {
		primary = repo
	}

	durable, err := store.NewFileStore(cfg.DurablePath)
	if err != nil {
		log.Fatalf("unable to open durable store: %v", err)
	}
	cache := store.NewLeadCache(cfg.CacheMaxEntries)

	policy := store.RetryPolicy{
		Attempts:       cfg.RetryAttempts,
		Backoff:        cfg.BackoffSchedule,
		AttemptTimeout: cfg.AttemptTimeout,
	}
	tiered := store.NewTieredStore(primary, durable, cache, policy, logger)

	sink, err := audit.NewFileSink(cfg.AuditLogPath)
	if err != nil {
		log.Fatalf("unable to open audit log: %v", err)
	}

	var limiter ports.RateLimiter
	if cfg.RedisAddr != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RateLimitWindow)
		if err != nil {
			log.Fatalf("unable to connect rate limiter: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow)
	}

	gate := services.NewAccessGate(repo, limiter, sink, cfg.DefaultRateLimit, logger)
	svc := services.NewLeadService(gate, tiered, sink, logger)

	// Reconciliation is recovery-triggered: the monitor replays fallback
	// records whenever the primary comes back.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tiered.MonitorPrimary(ctx, 15*time.Second)

	apiHandler := api.NewAPIHandler(svc, tiered)
	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	handler := api.LoggingMiddleware(logger)(mux)

	logger.Info("leadvault listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
