package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"courseattend/internal/config"
	"courseattend/internal/logger"
	"courseattend/internal/queue"
	"courseattend/internal/store"
	"courseattend/internal/visits"
)

// Worker drains visit events from redis into Postgres.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.LogWarn("QUEUE_BACKEND=memory: the console stores visits itself, worker has nothing to consume")
		return
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.LogError("db connect failed", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	repo := visits.NewRepository(db.Client)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.LogError("schema setup failed", err)
		os.Exit(1)
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	logger.LogInfo("worker started, waiting for visits", "queue", queue.DefaultKey)
	if err := visits.Consume(ctx, q, repo); err != nil && !errors.Is(err, context.Canceled) {
		logger.LogError("worker stopped", err)
		os.Exit(1)
	}
	logger.LogInfo("worker stopped")
}
