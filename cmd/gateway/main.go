package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/avenirfi/conseil-gateway/internal/audit"
	"github.com/avenirfi/conseil-gateway/internal/config"
	"github.com/avenirfi/conseil-gateway/internal/gateway"
	"github.com/avenirfi/conseil-gateway/internal/generation"
	"github.com/avenirfi/conseil-gateway/internal/intent"
	"github.com/avenirfi/conseil-gateway/internal/optimizer"
	"github.com/avenirfi/conseil-gateway/internal/quota"
	"github.com/avenirfi/conseil-gateway/internal/routing"
	"github.com/avenirfi/conseil-gateway/internal/synthesis"
	"github.com/avenirfi/conseil-gateway/internal/telemetry"
	"github.com/avenirfi/conseil-gateway/internal/validate"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL (optional: the audit trail degrades to a no-op)
	var dbPool *pgxpool.Pool
	if cfg.Database.Host != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Warn("failed to create database pool (audit trail disabled)", "error", err)
		} else if err := pool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (audit trail disabled)", "error", err)
			pool.Close()
		} else {
			dbPool = pool
			defer dbPool.Close()
			logger.Info("database connected")
		}
	}

	// Connect to Redis; the quota counter falls back to process memory
	var quotaStore quota.Store
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (quota counter is in-memory)", "error", err)
			quotaStore = quota.NewCounter(cfg.Router.DailyQuotaLimit)
		} else {
			logger.Info("redis connected")
			quotaStore = quota.NewRedisStore(rdb, cfg.Router.DailyQuotaLimit)
		}
	} else {
		quotaStore = quota.NewCounter(cfg.Router.DailyQuotaLimit)
	}

	metrics := telemetry.NewMetrics()
	auditStore := audit.NewStore(dbPool, logger)

	// Classification chain
	var secondary intent.SecondaryClassifier
	if cfg.Classifier.APIKey != "" {
		secondary = intent.NewGeminiClassifier(cfg.Classifier, nil)
	} else {
		logger.Warn("no classifier API key configured, running on local heuristic only")
	}
	breaker := intent.NewCircuitBreaker(
		cfg.Router.CircuitBreaker.FailureThreshold,
		cfg.Router.CircuitBreaker.RecoveryProbeInterval,
	)
	chain := intent.NewChain(
		intent.NewLocalClassifier(),
		secondary,
		quotaStore,
		breaker,
		cfg.Router.LocalClarityCutoff,
		logger,
	)

	engine := routing.NewEngine(cfg.Router.ClarityHigh, cfg.Router.ClarityMedium)
	gen := generation.NewClient(cfg.Generation, nil)

	opt := optimizer.New(
		chain,
		engine,
		synthesis.NewBuilder(),
		validate.NewValidator(nil),
		gen,
		metrics,
		auditStore,
		logger,
	)

	agent := gateway.NewStubAgent(gen)
	handler := gateway.NewHandler(opt, agent, quotaStore, auditStore, loader.Config, metrics)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/advisor/v1/health", healthHandler)
	r.Post("/v1/advisor/query", handler.Query)
	r.Post("/v1/advisor/clarify", handler.Clarify)
	r.Get("/v1/advisor/stats", handler.Stats)
	r.Post("/admin/quota/reset", handler.QuotaReset)

	// Metrics on a separate port
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics server starting", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("advisor gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("advisor gateway stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
