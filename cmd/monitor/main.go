package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/eventwatch/internal/adapter/api"
	"github.com/user/eventwatch/internal/adapter/feed"
	"github.com/user/eventwatch/internal/adapter/metrics"
	redisrepo "github.com/user/eventwatch/internal/adapter/repository/redis"
	"github.com/user/eventwatch/internal/domain"
	"github.com/user/eventwatch/internal/pkg/config"
	"github.com/user/eventwatch/internal/pkg/logger"
	"github.com/user/eventwatch/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.NewPipelineMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// --- Feed client ---
	fetcher, err := feed.NewClient(feed.Options{
		Token:             cfg.GitHubToken,
		BaseURL:           cfg.GitHubAPIURL,
		MaxPages:          cfg.FetchMaxPages,
		MaxRecords:        cfg.FetchMaxRecords,
		QuotaFloor:        cfg.QuotaFloor,
		PageTimeout:       cfg.FetchPageTimeout,
		RequestsPerSecond: cfg.FetchRateLimit,
	}, log, m)
	if err != nil {
		log.Error("failed to create feed client", "error", err)
		os.Exit(1)
	}

	// --- Stores and pipeline ---
	eventStore := redisrepo.NewEventStore(redisClient, log)
	snapshotStore := redisrepo.NewSnapshotStore(redisClient, log, cfg.SnapshotRetention)

	var queue domain.ArchiveQueue
	if cfg.ArchiveEnabled {
		queue = redisrepo.NewArchiveQueue(redisClient, log, cfg.ArchiveStream)
		log.Info("archive publishing enabled", "stream", cfg.ArchiveStream)
	}

	filter := usecase.NewAdmissionFilter(cfg.DedupWindow, cfg.FetchInterval, cfg.GapBuffer, log)
	collector := usecase.NewCollector(fetcher, filter, eventStore, queue, m, log, cfg.FetchInterval, cfg.Retention)

	stats := usecase.NewStatsService(eventStore)
	recorder := usecase.NewSnapshotRecorder(stats, snapshotStore, m, log,
		cfg.SnapshotWindow, cfg.SnapshotRetention, cfg.SnapshotInterval)

	go collector.Run(ctx)
	go recorder.Run(ctx)

	// --- Admin server (prometheus + healthz) ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	adminServer := &http.Server{Addr: cfg.AdminServerAddr, Handler: adminMux}

	go func() {
		log.Info("starting admin server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", "error", err)
		}
	}()

	// --- Query API server ---
	apiServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      api.NewRouter(stats, recorder, collector, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		log.Info("starting query api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("query api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("query api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	log.Info("shut down gracefully")
}
