package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"courseattend/internal/apiclient"
	"courseattend/internal/config"
	"courseattend/internal/logger"
	"courseattend/internal/queue"
	"courseattend/internal/session"
	"courseattend/internal/shell"
	"courseattend/internal/store"
	"courseattend/internal/visits"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.LogError("http server failed", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	health := map[string]shell.Pinger{"redis": redisClient}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	switch {
	case errors.Is(err, store.ErrNotConfigured):
		logger.LogInfo("visit storage disabled, DATABASE_URL not set")
	case err != nil:
		logger.LogWarn("db not reachable", "error", err)
	}
	defer db.Close()

	var sessions session.Store
	if cfg.SessionBackend == "memory" {
		sessions = session.NewMemoryStore()
	} else {
		sessions = session.NewRedisStore(redisClient.Client, "courseattend:session:")
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	var repo *visits.Repository
	var lister shell.VisitLister
	if db != nil {
		health["db"] = db
		repo = visits.NewRepository(db.Client)
		lister = repo
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.LogWarn("visit schema not ensured", "error", err)
		}
	}
	// Without a broker there is no worker; store visits in-process.
	if cfg.QueueBackend == "memory" && repo != nil {
		go func() {
			if err := visits.Consume(ctx, q, repo); err != nil && !errors.Is(err, context.Canceled) {
				logger.LogError("visit consumer stopped", err)
			}
		}()
	}

	srv := shell.New(shell.Deps{
		Config:   cfg,
		API:      apiclient.New(cfg.BackendURL, cfg.APITimeout),
		Sessions: sessions,
		Recorder: visits.NewRecorder(q),
		Visits:   lister,
		Health:   health,
	})
	go srv.Run(ctx, time.Minute)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogInfo("console listening", "port", cfg.HTTPPort, "backend", cfg.BackendURL, "env", cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.LogInfo("shutting down console")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.LogError("forced shutdown", err)
	}
	logger.LogInfo("console exited")
	return nil
}
