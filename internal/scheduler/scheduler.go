// Package scheduler runs tasks on a fixed cadence until its context ends.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of periodic work.
type Task interface {
	Name() string
	Tick(ctx context.Context) error
}

// Repeat schedules Task every Interval. RunAtStart fires one tick before the
// first interval elapses.
type Repeat struct {
	Task       Task
	Interval   time.Duration
	RunAtStart bool
}

// Runner drives Repeats. A failing tick is logged and retried at the next
// cadence; it never stops the runner.
type Runner struct {
	logger *zap.Logger
	idle   []error
}

// NewRunner returns a Runner. Tick errors matching any of idle mean
// "nothing to do" and are logged at debug level only.
func NewRunner(logger *zap.Logger, idle ...error) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, idle: idle}
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context, jobs ...Repeat) error {
	for _, j := range jobs {
		if j.Task == nil {
			return errors.New("scheduler: nil task")
		}
		if j.Interval <= 0 {
			return errors.Errorf("scheduler: task %s needs a positive interval", j.Task.Name())
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			r.loop(ctx, j)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, j Repeat) {
	log := r.logger.With(zap.String("task", j.Task.Name()))
	log.Info("task scheduled", zap.Duration("interval", j.Interval))

	if j.RunAtStart {
		r.tick(ctx, log, j.Task)
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("task stopped")
			return
		case <-ticker.C:
			r.tick(ctx, log, j.Task)
		}
	}
}

func (r *Runner) tick(ctx context.Context, log *zap.Logger, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("task panicked", zap.String("panic", fmt.Sprint(rec)))
		}
	}()

	start := time.Now()
	err := task.Tick(ctx)
	switch {
	case err == nil:
		log.Debug("task tick done", zap.Duration("took", time.Since(start)))
	case r.isIdle(err):
		log.Debug("task had nothing to do")
	case ctx.Err() != nil:
		log.Debug("task interrupted by shutdown", zap.Error(err))
	default:
		log.Error("task tick failed, retrying at next interval", zap.Error(err))
	}
}

func (r *Runner) isIdle(err error) bool {
	for _, idle := range r.idle {
		if errors.Is(err, idle) {
			return true
		}
	}
	return false
}
