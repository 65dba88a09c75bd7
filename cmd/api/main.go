// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the extcontrol HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL and run migrations (when DATABASE_URL is set).
//  4. Connect to Redis (when REDIS_URL is set).
//  5. Wire limiter, denylist, credential backend and audit publisher.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/extcontrol/internal/api"
	"github.com/taibuivan/extcontrol/internal/auth"
	"github.com/taibuivan/extcontrol/internal/platform/config"
	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/middleware"
	"github.com/taibuivan/extcontrol/internal/platform/migration"
	pgstore "github.com/taibuivan/extcontrol/internal/platform/postgres"
	redisstore "github.com/taibuivan/extcontrol/internal/platform/redis"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	level := parseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log = newLogger(level)
	slog.SetDefault(log)

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("postgres", cfg.DatabaseURL != ""),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("identity_provider", cfg.IdentityProviderURL != ""),
		slog.Bool("kafka", len(cfg.KafkaBrokers) > 0),
	)

	// Background workers stop when the process receives a shutdown signal.
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Use a 30s deadline so misconfiguration is caught quickly rather than
	// hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	health := api.HealthDependencies{}

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	var accounts auth.AccountRepository
	if cfg.DatabaseURL != "" {
		var pool *pgxpool.Pool
		pool, err = pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		accounts = auth.NewPostgresAccountRepository(pool)
		health.CheckDatabase = func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }
	} else {
		log.Warn("account_store_in_memory", slog.String("reason", "DATABASE_URL is not set"))
		accounts = auth.NewMemoryAccountRepository()
	}

	// ── 4. Limiter & Denylist ─────────────────────────────────────────────
	policy := auth.Policy{
		MaxAttempts:   cfg.LoginMaxAttempts,
		Window:        cfg.LoginWindow,
		BlockDuration: cfg.LoginBlockDuration,
	}
	localLimiter := auth.NewMemoryLimiter(policy, cfg.LoginLimiterMaxEntries)
	go localLimiter.Run(rootCtx, cfg.LoginLimiterSweepInterval)

	var limiter auth.AttemptLimiter = localLimiter
	var revocations auth.RevocationList

	if cfg.RedisURL != "" {
		var rdb *goredis.Client
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		limiter = auth.NewFallbackLimiter(auth.NewRedisLimiter(rdb, policy), localLimiter, log)
		revocations = auth.NewRedisRevocationList(rdb)
		health.CheckCache = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
	} else {
		memoryRevocations := auth.NewMemoryRevocationList()
		go memoryRevocations.Run(rootCtx, cfg.LoginLimiterSweepInterval)
		revocations = memoryRevocations
	}

	// ── 5. Credential Backend ─────────────────────────────────────────────
	var backend auth.CredentialBackend
	if cfg.IdentityProviderURL != "" {
		backend = auth.NewProviderCredentials(auth.ProviderConfig{
			BaseURL: cfg.IdentityProviderURL,
			APIKey:  cfg.IdentityProviderAPIKey,
			Timeout: cfg.IdentityProviderTimeout,
		}, log)
	} else {
		backend = auth.NewLocalCredentials(accounts)
	}

	// ── 6. Audit ──────────────────────────────────────────────────────────
	var audit auth.AuditPublisher = auth.NewLogAuditPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaAudit := auth.NewKafkaAuditPublisher(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		defer func() {
			if cerr := kafkaAudit.Close(); cerr != nil {
				log.Error("kafka_audit_close_failed", slog.Any("error", cerr))
			}
		}()
		audit = kafkaAudit
	}

	// ── 7. Auth Service ───────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	must(log, err, "initialize token service")

	directory := auth.NewAccountDirectory(accounts)
	resolver := auth.NewResolver(directory)

	authService := auth.NewService(auth.Dependencies{
		Backend:     backend,
		Accounts:    accounts,
		Directory:   directory,
		Limiter:     limiter,
		Tokens:      tokens,
		Revocations: revocations,
		Resolver:    resolver,
		Policy: auth.PasswordPolicy{
			MinLength:    cfg.PasswordMinLength,
			RequireUpper: cfg.PasswordRequireUpper,
			RequireLower: cfg.PasswordRequireLower,
			RequireDigit: cfg.PasswordRequireDigit,
		},
		Audit: audit,
	})
	gate := auth.NewGate(tokens, resolver, revocations).WithStrictEntitlements(cfg.StrictEntitlements)
	authHandler := auth.NewHandler(authService, gate)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	proxyTrust, err := middleware.NewProxyTrust(cfg.TrustedProxies)
	must(log, err, "parse trusted proxies")

	throttle := middleware.NewThrottle(constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst)
	go throttle.Run(rootCtx, constants.RateLimitCleanupInterval)

	liveness, readiness := api.NewHealthHandlers(health, log)
	server := api.NewServer(cfg, log, proxyTrust, throttle, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   promhttp.Handler(),
		Auth:      authHandler,
	})

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_signal_received")
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}
	stop()

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failed",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
