package queue

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/flock"
	"github.com/SirClappington/pdagent/internal/ledger"
)

// Flush offers every eligible pending event to consumer in enqueue order.
// It returns ErrEmptyQueue when nothing is pending, either up front or once
// the pass has drained the queue. A cancelled ctx ends the pass cleanly.
func (s *Store) Flush(ctx context.Context, consumer Consumer) error {
	return s.flush(ctx, consumer, false)
}

// Dequeue is Flush limited to a single consume call.
func (s *Store) Dequeue(ctx context.Context, consumer Consumer) error {
	return s.flush(ctx, consumer, true)
}

func (s *Store) flush(ctx context.Context, consumer Consumer, single bool) (err error) {
	if consumer == nil {
		return ErrNilConsumer
	}

	names, err := s.list(StatePending)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		s.cfg.Metrics.SetPending(0)
		return ErrEmptyQueue
	}

	lock := s.newLock()
	if err := lock.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "queue: acquire flush lock")
	}
	defer func() {
		err = multierr.Append(err, lock.Release())
	}()

	start := time.Now()
	defer func() {
		s.cfg.Metrics.ObserveFlushDuration(time.Since(start))
	}()

	// The listing may be stale once the lock is ours.
	names, err = s.list(StatePending)
	if err != nil {
		return err
	}

	p := s.newPass()
	if err := p.run(ctx, consumer, names, single); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	remaining, err := s.list(StatePending)
	if err != nil {
		return err
	}
	s.cfg.Metrics.SetPending(len(remaining))
	if len(remaining) == 0 {
		return ErrEmptyQueue
	}
	return nil
}

func (s *Store) newLock() *flock.Lock {
	return flock.New(filepath.Join(s.root, lockFile), s.cfg.LockTimeout, s.cfg.LockPollInterval)
}

// pass is the state of one lock-held traversal of the pending directory.
type pass struct {
	s       *Store
	backoff *ledger.Backoff
	counter *ledger.Counter
	blocked map[string]struct{}
}

func (s *Store) newPass() *pass {
	return &pass{
		s:       s,
		backoff: s.backoffLedger(),
		counter: ledger.NewCounter(filepath.Join(s.root, countersFile), s.cfg.Logger),
		blocked: map[string]struct{}{},
	}
}

func (s *Store) backoffLedger() *ledger.Backoff {
	b := ledger.NewBackoff(filepath.Join(s.root, backoffFile), s.cfg.Logger)
	b.Load()
	return b
}

func (p *pass) run(ctx context.Context, consumer Consumer, names []string, single bool) error {
	if err := p.counter.Load(p.s.cfg.Clock.Now()); err != nil {
		p.s.logger.Warn("counter ledger not persisted", zap.Error(err))
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return nil
		}

		e, err := parseName(name)
		if err != nil {
			p.quarantine(name, err)
			continue
		}
		if _, ok := p.blocked[e.destination]; ok {
			continue
		}
		if p.backoff.InBackoff(e.destination, p.s.cfg.Clock.Now()) {
			p.block(e.destination)
			continue
		}

		payload, err := os.ReadFile(p.s.path(StatePending, name))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				p.s.logger.Error("reading pending event failed", zap.String("event_id", name), zap.Error(err))
				p.block(e.destination)
			}
			continue
		}

		outcome := consumer.Consume(ctx, payload, name)
		p.s.cfg.Metrics.AddOutcome(outcome)

		// A delivery cut short by shutdown says nothing about the destination.
		if ctx.Err() != nil && outcome != Consumed {
			p.s.logger.Info("flush cancelled during delivery, leaving event pending",
				zap.String("event_id", name), zap.Stringer("outcome", outcome))
			return nil
		}

		stop, err := p.apply(e, outcome)
		if err != nil {
			return err
		}
		if stop || single {
			return nil
		}
	}
	return nil
}

// apply performs the state transition and ledger updates for outcome. It
// reports whether the pass must stop.
func (p *pass) apply(e entry, outcome Outcome) (bool, error) {
	log := p.s.logger.With(
		zap.String("event_id", e.name),
		zap.String("destination", e.destination),
		zap.Stringer("outcome", outcome),
	)

	switch outcome {
	case Consumed:
		if err := p.s.move(e.name, StatePending, StateSucceeded); err != nil {
			return false, err
		}
		log.Debug("event consumed")
		return false, multierr.Append(p.counter.IncrementSuccess(), p.backoff.Reset(e.destination))

	case BadEntry:
		log.Warn("event rejected, moving to failed")
		return false, p.fail(e)

	case NotConsumed:
		log.Info("event not consumed, skipping destination for this pass")
		p.block(e.destination)
		return false, nil

	case StopAll:
		log.Warn("consumer requested stop, ending flush pass")
		return true, nil

	case BackoffBadEntry:
		attempts := p.backoff.Attempts(e.destination) + 1
		if attempts > p.s.cfg.RetryLimit {
			log.Warn("retry limit exceeded, moving to failed", zap.Int("attempts", attempts))
			if err := p.fail(e); err != nil {
				return false, err
			}
			return false, p.backoff.Reset(e.destination)
		}
		return false, p.backOff(log, e.destination)

	case BackoffNotConsumed:
		return false, p.backOff(log, e.destination)

	default:
		log.Error("consumer returned unknown outcome, treating as not consumed", zap.Int("code", int(outcome)))
		p.block(e.destination)
		return false, nil
	}
}

func (p *pass) fail(e entry) error {
	if err := p.s.move(e.name, StatePending, StateFailed); err != nil {
		return err
	}
	return p.counter.IncrementFailure()
}

func (p *pass) backOff(log *zap.Logger, destination string) error {
	now := p.s.cfg.Clock.Now()
	next := p.backoff.Attempts(destination) + 1
	delay := p.s.cfg.Backoff(next)
	attempts, err := p.backoff.Increment(destination, now, delay)
	p.block(destination)
	log.Info("destination backed off",
		zap.Int("attempts", attempts),
		zap.Time("next_retry_at", now.Add(delay)),
	)
	return err
}

func (p *pass) block(destination string) {
	p.blocked[destination] = struct{}{}
}

// quarantine moves an unparseable pending file to failed so it stops
// occupying the scan.
func (p *pass) quarantine(name string, cause error) {
	p.s.logger.Warn("malformed pending event, moving to failed", zap.String("file", name), zap.Error(cause))
	if err := p.s.move(name, StatePending, StateFailed); err != nil {
		p.s.logger.Error("quarantining malformed event failed", zap.String("file", name), zap.Error(err))
	}
}
