package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/api"
	"github.com/SirClappington/pdagent/internal/config"
	"github.com/SirClappington/pdagent/internal/enqueuer"
	"github.com/SirClappington/pdagent/internal/heartbeat"
	"github.com/SirClappington/pdagent/internal/logger"
	"github.com/SirClappington/pdagent/internal/observability"
	"github.com/SirClappington/pdagent/internal/queue"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := queue.NewStore(cfg.QueueDir,
		queue.WithLogger(log),
		queue.WithMetrics(observability.QueueMetrics{}),
		queue.WithLockTimeout(cfg.LockTimeout),
		queue.WithLockPollInterval(cfg.LockPollInterval),
	)
	if err != nil {
		log.Fatal("open queue", zap.Error(err))
	}
	agentID, err := heartbeat.AgentID(filepath.Join(cfg.QueueDir, "agent.json"), log)
	if err != nil {
		log.Fatal("load agent id", zap.Error(err))
	}

	h := api.NewHandler(store, enqueuer.New(store, agentID, log), log)
	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("api listening", zap.String("addr", cfg.APIAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("api server failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("api stopped")
}
