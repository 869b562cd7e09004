package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupRemovesOldTerminalFilesOnly(t *testing.T) {
	metrics := &countingMetrics{}
	s, clock := newTestStore(t, WithMetrics(metrics))
	enqueue(t, s, clock, "k1", "old-ok")
	enqueue(t, s, clock, "k2", "old-bad")
	enqueue(t, s, clock, "k3", "old-pending")
	stale := eventName(baseTime.UnixMicro(), 0, "k4")
	require.NoError(t, os.WriteFile(filepath.Join(s.root, StateTransient.dir(), stale), []byte("tmp"), 0o644))

	rec := &recorder{decide: outcomes(map[string]Outcome{
		"old-bad":     BadEntry,
		"old-pending": NotConsumed,
	})}
	require.NoError(t, s.Flush(context.Background(), rec))

	clock.Advance(2 * time.Hour)
	enqueue(t, s, clock, "k1", "young-ok")
	rec.decide = outcomes(map[string]Outcome{"old-pending": NotConsumed})
	require.NoError(t, s.Flush(context.Background(), rec))

	removed, err := s.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 3, metrics.cleaned)

	assert.Equal(t, []string{"young-ok"}, payloadsIn(t, s, StateSucceeded))
	assert.Empty(t, payloadsIn(t, s, StateFailed))
	assert.Empty(t, payloadsIn(t, s, StateTransient))
	assert.Equal(t, []string{"old-pending"}, payloadsIn(t, s, StatePending))
}

func TestCleanupKeepsFilesWithinThreshold(t *testing.T) {
	s, clock := newTestStore(t)
	enqueue(t, s, clock, "k1", "recent")
	require.ErrorIs(t, s.Flush(context.Background(), &recorder{}), ErrEmptyQueue)

	removed, err := s.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, []string{"recent"}, payloadsIn(t, s, StateSucceeded))
}

func TestCleanupUsesModTimeForUnparseableNames(t *testing.T) {
	s, clock := newTestStore(t)
	path := filepath.Join(s.root, StateFailed.dir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	old := baseTime.Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	clock.Advance(time.Minute)

	removed, err := s.Cleanup(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCleanupSparesFreshStagingFiles(t *testing.T) {
	s, clock := newTestStore(t)
	staging := eventName(clock.Now().UnixMicro(), 0, "k1")
	require.NoError(t, os.WriteFile(filepath.Join(s.root, StateTransient.dir(), staging), []byte("in flight"), 0o644))
	clock.Advance(time.Second)

	removed, err := s.Cleanup(0)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, []string{"in flight"}, payloadsIn(t, s, StateTransient))

	clock.Advance(stagingGrace)
	removed, err = s.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestResurrectSingleDestination(t *testing.T) {
	s, clock := newTestStore(t)
	enqueue(t, s, clock, "x", "x1")
	enqueue(t, s, clock, "y", "y1")
	enqueue(t, s, clock, "x", "x2")
	bad := &recorder{decide: func(string) Outcome { return BadEntry }}
	require.ErrorIs(t, s.Flush(context.Background(), bad), ErrEmptyQueue)

	before, err := s.Stats("")
	require.NoError(t, err)

	moved, err := s.Resurrect(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Equal(t, []string{"x1", "x2"}, payloadsIn(t, s, StatePending))
	assert.Equal(t, []string{"y1"}, payloadsIn(t, s, StateFailed))

	after, err := s.Stats("")
	require.NoError(t, err)
	assert.Equal(t, before.Failed, after.Failed)
	assert.Equal(t, before.Successful, after.Successful)
}

func TestResurrectAll(t *testing.T) {
	s, clock := newTestStore(t)
	enqueue(t, s, clock, "x", "x1")
	enqueue(t, s, clock, "y", "y1")
	bad := &recorder{decide: func(string) Outcome { return BadEntry }}
	require.ErrorIs(t, s.Flush(context.Background(), bad), ErrEmptyQueue)

	moved, err := s.Resurrect(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Equal(t, []string{"x1", "y1"}, payloadsIn(t, s, StatePending))
	assert.Empty(t, payloadsIn(t, s, StateFailed))

	snap, err := s.Stats("")
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.Failed, "counters are not rewound")
}

func TestResurrectUnknownDestinationIsNoop(t *testing.T) {
	s, _ := newTestStore(t)
	moved, err := s.Resurrect(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, moved)
}
