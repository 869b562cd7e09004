package ledger

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/persist"
)

// Counters is the aggregate delivery tally. StartedOn is set once.
type Counters struct {
	StartedOn  time.Time `json:"started_on"`
	Successful int64     `json:"successful_events_count"`
	Failed     int64     `json:"failed_events_count"`
}

// Counter is the persisted singleton holding Counters.
type Counter struct {
	doc     *persist.Document[Counters]
	current Counters
}

// NewCounter returns a Counter persisted at path. Call Load before mutating.
func NewCounter(path string, logger *zap.Logger) *Counter {
	return &Counter{doc: persist.NewDocument[Counters](path, logger)}
}

// Load refreshes the counters from disk. The first load on a fresh store
// stamps StartedOn with now and persists it.
func (c *Counter) Load(now time.Time) error {
	cur, ok := c.doc.Get()
	if ok && !cur.StartedOn.IsZero() {
		c.current = cur
		return nil
	}
	cur.StartedOn = now
	c.current = cur
	return errors.Wrap(c.doc.Set(cur), "ledger: persist counters")
}

// IncrementSuccess records one consumed event and persists.
func (c *Counter) IncrementSuccess() error {
	c.current.Successful++
	return errors.Wrap(c.doc.Set(c.current), "ledger: persist counters")
}

// IncrementFailure records one event moved to failed and persists.
func (c *Counter) IncrementFailure() error {
	c.current.Failed++
	return errors.Wrap(c.doc.Set(c.current), "ledger: persist counters")
}

// Read returns the persisted counters without touching in-memory state.
func (c *Counter) Read() Counters {
	cur, _ := c.doc.Get()
	return cur
}
