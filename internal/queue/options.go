package queue

import (
	"math"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryLimit       = 3
	defaultBackoffDelay     = 30 * time.Second
	defaultLockTimeout      = 10 * time.Second
	defaultLockPollInterval = 100 * time.Millisecond
	defaultFileMode         = os.FileMode(0o644)
)

// BackoffPolicy returns the delay before a destination with the given number
// of consecutive failed attempts is tried again.
type BackoffPolicy func(attempts int) time.Duration

// ConstantBackoff waits the same delay after every failure.
func ConstantBackoff(delay time.Duration) BackoffPolicy {
	return func(int) time.Duration { return delay }
}

// ExponentialBackoff waits initial*factor^(attempts-1), capped at maxDelay when
// maxDelay is positive. Without a cap the delay saturates at the largest
// representable duration.
func ExponentialBackoff(initial time.Duration, factor float64, maxDelay time.Duration) BackoffPolicy {
	if factor < 1 {
		factor = 1
	}
	ceiling := time.Duration(math.MaxInt64)
	if maxDelay > 0 {
		ceiling = maxDelay
	}
	return func(attempts int) time.Duration {
		if attempts < 1 {
			attempts = 1
		}
		d := float64(initial) * math.Pow(factor, float64(attempts-1))
		if math.IsNaN(d) || d < 0 || d >= float64(ceiling) {
			return ceiling
		}
		return time.Duration(d)
	}
}

// Config defines store behavior. Retry policy knobs are injected here.
type Config struct {
	Clock            Clock
	Logger           *zap.Logger
	Metrics          Metrics
	RetryLimit       int
	Backoff          BackoffPolicy
	LockTimeout      time.Duration
	LockPollInterval time.Duration
	FileMode         os.FileMode
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = defaultRetryLimit
	}
	if c.Backoff == nil {
		c.Backoff = ConstantBackoff(defaultBackoffDelay)
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = defaultLockTimeout
	}
	if c.LockPollInterval <= 0 {
		c.LockPollInterval = defaultLockPollInterval
	}
	if c.FileMode == 0 {
		c.FileMode = defaultFileMode
	}
	return c
}

// Option configures a Store.
type Option func(*Config)

// WithClock sets the store clock.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the store metrics recorder.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithRetryLimit sets how many BackoffBadEntry attempts an event gets before
// it is failed.
func WithRetryLimit(limit int) Option {
	return func(c *Config) {
		c.RetryLimit = limit
	}
}

// WithBackoff sets the per-destination backoff policy.
func WithBackoff(policy BackoffPolicy) Option {
	return func(c *Config) {
		c.Backoff = policy
	}
}

// WithLockTimeout sets how long a pass waits for the flush lock.
func WithLockTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.LockTimeout = timeout
	}
}

// WithLockPollInterval sets how often a waiting pass retries the flush lock.
func WithLockPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.LockPollInterval = interval
	}
}

// WithFileMode sets the permissions applied to new event files.
func WithFileMode(mode os.FileMode) Option {
	return func(c *Config) {
		c.FileMode = mode
	}
}
