package queue

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/SirClappington/pdagent/internal/ledger"
)

// StateStats summarizes one state directory.
type StateStats struct {
	Count  int       `json:"count"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}

// DestinationCounts is the per-state event count for one destination.
type DestinationCounts struct {
	Pending   int `json:"pending"`
	Transient int `json:"transient"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Snapshot is a point-in-time, lock-free view of the queue. Staleness is
// acceptable; it is advisory only.
type Snapshot struct {
	DestinationID  string                       `json:"destination_id,omitempty"`
	States         map[State]StateStats         `json:"states"`
	PerDestination map[string]DestinationCounts `json:"per_destination"`
	Malformed      int                          `json:"malformed"`
	Destinations   int                          `json:"destinations"`
	InBackoff      int                          `json:"in_backoff"`
	StartedOn      time.Time                    `json:"started_on"`
	Successful     int64                        `json:"successful_events_count"`
	Failed         int64                        `json:"failed_events_count"`
}

// Age returns how long ago the oldest event in state was enqueued.
func (s Snapshot) Age(state State, now time.Time) time.Duration {
	st := s.States[state]
	if st.Count == 0 || st.Oldest.IsZero() {
		return 0
	}
	return now.Sub(st.Oldest)
}

// Stats reports per-state counts and ages, destination counts and the
// aggregate counters. An empty destinationID covers every destination.
// Files with unparseable names are counted in Malformed only, so each
// state count equals the sum over PerDestination.
func (s *Store) Stats(destinationID string) (Snapshot, error) {
	snap := Snapshot{
		DestinationID:  destinationID,
		States:         make(map[State]StateStats, len(states)),
		PerDestination: map[string]DestinationCounts{},
	}

	for _, st := range states {
		names, err := s.list(st)
		if err != nil {
			return Snapshot{}, errors.Wrap(err, "queue: stats")
		}
		var agg StateStats
		for _, name := range names {
			e, err := parseName(name)
			if err != nil {
				if destinationID == "" {
					snap.Malformed++
				}
				continue
			}
			if destinationID != "" && e.destination != destinationID {
				continue
			}
			agg.Count++
			if agg.Oldest.IsZero() || e.enqueuedAt.Before(agg.Oldest) {
				agg.Oldest = e.enqueuedAt
			}
			if e.enqueuedAt.After(agg.Newest) {
				agg.Newest = e.enqueuedAt
			}
			counts := snap.PerDestination[e.destination]
			counts.add(st)
			snap.PerDestination[e.destination] = counts
		}
		snap.States[st] = agg
	}
	snap.Destinations = len(snap.PerDestination)

	now := s.cfg.Clock.Now()
	backoff := s.backoffLedger()
	if destinationID == "" {
		snap.InBackoff = backoff.ActiveCount(now)
	} else if backoff.InBackoff(destinationID, now) {
		snap.InBackoff = 1
	}

	counters := ledger.NewCounter(filepath.Join(s.root, countersFile), s.cfg.Logger).Read()
	snap.StartedOn = counters.StartedOn
	snap.Successful = counters.Successful
	snap.Failed = counters.Failed

	return snap, nil
}

func (c *DestinationCounts) add(st State) {
	switch st {
	case StatePending:
		c.Pending++
	case StateTransient:
		c.Transient++
	case StateSucceeded:
		c.Succeeded++
	case StateFailed:
		c.Failed++
	}
}
