package queue

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// stagingGrace protects staging files of in-flight enqueues from Cleanup.
const stagingGrace = time.Minute

// Cleanup removes transient, succeeded and failed files older than maxAge
// and returns how many were removed. Pending files are never touched.
func (s *Store) Cleanup(maxAge time.Duration) (int, error) {
	now := s.cfg.Clock.Now()
	removed := 0
	var errs error

	for _, st := range []State{StateTransient, StateSucceeded, StateFailed} {
		names, err := s.list(st)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, name := range names {
			at, err := s.fileTime(st, name)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					errs = multierr.Append(errs, err)
				}
				continue
			}
			age := now.Sub(at)
			if age <= maxAge || (st == StateTransient && age <= stagingGrace) {
				continue
			}
			if err := os.Remove(s.path(st, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = multierr.Append(errs, errors.Wrapf(err, "queue: remove %s", name))
				continue
			}
			removed++
		}
	}

	s.cfg.Metrics.AddCleaned(removed)
	if removed > 0 {
		s.logger.Info("cleaned up old events", zap.Int("removed", removed), zap.Duration("max_age", maxAge))
	}
	return removed, errs
}

// fileTime is the enqueue time encoded in name, or the modification time
// for names that do not parse.
func (s *Store) fileTime(st State, name string) (time.Time, error) {
	if e, err := parseName(name); err == nil {
		return e.enqueuedAt, nil
	}
	info, err := os.Stat(s.path(st, name))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Resurrect moves failed events back to pending: those of destinationID, or
// every failed event when destinationID is empty. Counters and backoff state
// are left alone. It returns the number of events moved.
func (s *Store) Resurrect(ctx context.Context, destinationID string) (int, error) {
	lock := s.newLock()
	if err := lock.Acquire(ctx); err != nil {
		return 0, errors.Wrap(err, "queue: acquire flush lock")
	}
	defer lock.Release()

	names, err := s.list(StateFailed)
	if err != nil {
		return 0, err
	}

	moved := 0
	var errs error
	for _, name := range names {
		// Malformed names would only be quarantined again.
		e, err := parseName(name)
		if err != nil || (destinationID != "" && e.destination != destinationID) {
			continue
		}
		if err := s.move(name, StateFailed, StatePending); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		moved++
	}

	if moved > 0 {
		s.logger.Info("resurrected failed events", zap.Int("count", moved), zap.String("destination", destinationID))
	}
	return moved, multierr.Append(errs, lock.Release())
}
