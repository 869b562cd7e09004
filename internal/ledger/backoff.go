// Package ledger holds the persisted bookkeeping the queue consults during a
// flush pass: per-destination backoff and aggregate delivery counters.
//
// Ledgers are not safe for concurrent mutation. The queue only mutates them
// while holding its flush lock.
package ledger

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/persist"
)

// BackoffRecord tracks consecutive failed consumptions for one destination.
type BackoffRecord struct {
	Attempts    int       `json:"attempts"`
	NextRetryAt time.Time `json:"next_retry_at"`
}

// Backoff is the per-destination backoff ledger.
type Backoff struct {
	doc     *persist.Document[map[string]BackoffRecord]
	records map[string]BackoffRecord
}

// NewBackoff returns a Backoff ledger persisted at path.
func NewBackoff(path string, logger *zap.Logger) *Backoff {
	return &Backoff{
		doc:     persist.NewDocument[map[string]BackoffRecord](path, logger),
		records: map[string]BackoffRecord{},
	}
}

// Load refreshes the in-memory records from disk. Missing or corrupt state
// starts the ledger empty.
func (b *Backoff) Load() {
	records, ok := b.doc.Get()
	if !ok || records == nil {
		records = map[string]BackoffRecord{}
	}
	b.records = records
}

// Attempts returns the consecutive failure count for key.
func (b *Backoff) Attempts(key string) int {
	return b.records[key].Attempts
}

// NextRetryAt returns when key becomes eligible again; zero if not backed off.
func (b *Backoff) NextRetryAt(key string) time.Time {
	return b.records[key].NextRetryAt
}

// InBackoff reports whether key must be skipped at now.
func (b *Backoff) InBackoff(key string, now time.Time) bool {
	rec, ok := b.records[key]
	return ok && rec.NextRetryAt.After(now)
}

// ActiveCount returns how many destinations are backed off at now.
func (b *Backoff) ActiveCount(now time.Time) int {
	n := 0
	for _, rec := range b.records {
		if rec.NextRetryAt.After(now) {
			n++
		}
	}
	return n
}

// Increment records one more failed attempt for key, schedules the next
// retry at now+delay and persists. It returns the new attempt count.
func (b *Backoff) Increment(key string, now time.Time, delay time.Duration) (int, error) {
	rec := b.records[key]
	rec.Attempts++
	rec.NextRetryAt = now.Add(delay)
	b.records[key] = rec
	return rec.Attempts, errors.Wrap(b.doc.Set(b.records), "ledger: persist backoff")
}

// Reset clears key's record and persists. Resetting an unknown key is a no-op.
func (b *Backoff) Reset(key string) error {
	if _, ok := b.records[key]; !ok {
		return nil
	}
	delete(b.records, key)
	return errors.Wrap(b.doc.Set(b.records), "ledger: persist backoff")
}

// Records returns a copy of the current records.
func (b *Backoff) Records() map[string]BackoffRecord {
	out := make(map[string]BackoffRecord, len(b.records))
	for k, v := range b.records {
		out[k] = v
	}
	return out
}
