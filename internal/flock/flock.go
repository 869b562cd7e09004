package flock

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// ErrTimeout is returned by Acquire when the lock could not be obtained in time.
var ErrTimeout = errors.New("flock: timed out acquiring lock")

// Lock is a cooperative, cross-process advisory lock over a single file.
// It is not reentrant and not safe for concurrent use by multiple goroutines;
// give each worker its own Lock over the same path.
type Lock struct {
	path         string
	timeout      time.Duration
	pollInterval time.Duration
	fl           *flock.Flock
}

// New returns an unlocked Lock on path. Zero durations select the defaults.
func New(path string, timeout, pollInterval time.Duration) *Lock {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Lock{
		path:         path,
		timeout:      timeout,
		pollInterval: pollInterval,
		fl:           flock.New(path),
	}
}

// Acquire blocks until the lock is held, the timeout elapses or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ok, err := l.fl.TryLockContext(waitCtx, l.pollInterval)
	if ok {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "%s after %s", l.path, l.timeout)
	}
	return errors.Wrapf(err, "flock: lock %s", l.path)
}

// Release drops the lock. Calling it on an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	return errors.Wrapf(l.fl.Unlock(), "flock: unlock %s", l.path)
}

// held reports whether this Lock currently holds the file lock.
func (l *Lock) held() bool { return l.fl.Locked() }
