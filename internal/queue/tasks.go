package queue

import (
	"context"
	"time"
)

// FlushTask runs one flush pass per tick.
type FlushTask struct {
	Store    *Store
	Consumer Consumer
}

func (t FlushTask) Name() string { return "flush" }

func (t FlushTask) Tick(ctx context.Context) error {
	return t.Store.Flush(ctx, t.Consumer)
}

// CleanupTask removes terminal events older than MaxAge on every tick.
type CleanupTask struct {
	Store  *Store
	MaxAge time.Duration
}

func (t CleanupTask) Name() string { return "cleanup" }

func (t CleanupTask) Tick(context.Context) error {
	_, err := t.Store.Cleanup(t.MaxAge)
	return err
}
