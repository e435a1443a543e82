package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/user/eventwatch/internal/adapter/repository/postgres"
	redisrepo "github.com/user/eventwatch/internal/adapter/repository/redis"
	"github.com/user/eventwatch/internal/pkg/config"
	"github.com/user/eventwatch/internal/pkg/logger"
	"github.com/user/eventwatch/internal/usecase"
)

const (
	archiveGroup    = "event-archivers"
	processInterval = 1 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting archive worker")

	if cfg.PostgresURL == "" {
		log.Error("POSTGRES_URL is required for the archiver")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	consumer, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumer = "archiver-default"
	}

	queue := redisrepo.NewArchiveQueue(redisClient, log, cfg.ArchiveStream)
	if err := queue.EnsureGroup(ctx, archiveGroup); err != nil {
		log.Error("failed to create consumer group", "error", err)
		os.Exit(1)
	}

	sink := postgres.NewArchiveSink(db, log)
	if err := sink.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure archive schema", "error", err)
		os.Exit(1)
	}

	archiver := usecase.NewArchiver(queue, sink, log, archiveGroup, consumer, cfg.ArchiveBatchSize)

	ticker := time.NewTicker(processInterval)
	defer ticker.Stop()

	log.Info("archive worker started", "stream", cfg.ArchiveStream, "group", archiveGroup, "consumer", consumer)

Loop:
	for {
		select {
		case <-ticker.C:
			if _, err := archiver.ProcessBatch(ctx); err != nil {
				log.Error("error processing archive batch", "error", err)
			}
		case <-ctx.Done():
			break Loop
		}
	}

	log.Info("archive worker shut down gracefully")
}
