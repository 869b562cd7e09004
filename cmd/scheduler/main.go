package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SirClappington/pdagent/internal/config"
	"github.com/SirClappington/pdagent/internal/heartbeat"
	"github.com/SirClappington/pdagent/internal/logger"
	"github.com/SirClappington/pdagent/internal/observability"
	"github.com/SirClappington/pdagent/internal/queue"
	"github.com/SirClappington/pdagent/internal/scheduler"
	"github.com/SirClappington/pdagent/internal/transport"
)

var version = "dev"

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
		queue.WithRetryLimit(cfg.RetryLimitForPossibleErrors),
		queue.WithBackoff(queue.ExponentialBackoff(cfg.BackoffInitialDelay, cfg.BackoffFactor, cfg.BackoffMaxDelay)),
		queue.WithLockTimeout(cfg.LockTimeout),
		queue.WithLockPollInterval(cfg.LockPollInterval),
	)
	if err != nil {
		log.Fatal("open queue", zap.Error(err))
	}

	sender := transport.NewSender(cfg.EventsURL, "pdagent/"+version, cfg.HTTPTimeout, nil, log.Named("transport"))

	jobs := []scheduler.Repeat{
		{Task: queue.FlushTask{Store: store, Consumer: sender}, Interval: cfg.FlushInterval, RunAtStart: true},
		{Task: queue.CleanupTask{Store: store, MaxAge: cfg.CleanupThreshold}, Interval: cfg.CleanupInterval},
	}

	if cfg.HeartbeatURL != "" {
		agentID, err := heartbeat.AgentID(filepath.Join(cfg.QueueDir, "agent.json"), log)
		if err != nil {
			log.Fatal("load agent id", zap.Error(err))
		}
		jobs = append(jobs, scheduler.Repeat{
			Task: &heartbeat.Task{
				URL:     cfg.HeartbeatURL,
				AgentID: agentID,
				Version: version,
				Stats:   store,
				Client:  &http.Client{Timeout: cfg.HTTPTimeout},
				Logger:  log.Named("heartbeat"),
			},
			Interval:   cfg.HeartbeatInterval,
			RunAtStart: true,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.SchedAddr != "" {
		g.Go(func() error {
			return observability.Serve(gctx, cfg.SchedAddr, observability.Router(), log)
		})
	}
	g.Go(func() error {
		return scheduler.NewRunner(log, queue.ErrEmptyQueue).Run(gctx, jobs...)
	})

	log.Info("scheduler started", zap.String("queue_dir", cfg.QueueDir), zap.String("version", version))
	if err := g.Wait(); err != nil {
		log.Error("scheduler failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
