package queue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder remembers every payload offered to it and answers with decide.
type recorder struct {
	seen   []string
	decide func(payload string) Outcome
}

func (r *recorder) Consume(_ context.Context, payload []byte, _ string) Outcome {
	r.seen = append(r.seen, string(payload))
	if r.decide == nil {
		return Consumed
	}
	return r.decide(string(payload))
}

func outcomes(m map[string]Outcome) func(string) Outcome {
	return func(p string) Outcome {
		if o, ok := m[p]; ok {
			return o
		}
		return Consumed
	}
}

type countingMetrics struct {
	NopMetrics
	mu         sync.Mutex
	outcomes   map[Outcome]int
	pending    int
	permFixes  int
	cleaned    int
	flushCount int
}

func (m *countingMetrics) AddOutcome(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[Outcome]int{}
	}
	m.outcomes[o]++
}

func (m *countingMetrics) SetPending(n int) { m.pending = n }

func (m *countingMetrics) AddPermissionFix() {
	m.mu.Lock()
	m.permFixes++
	m.mu.Unlock()
}

func (m *countingMetrics) AddCleaned(n int) { m.cleaned += n }

func (m *countingMetrics) ObserveFlushDuration(time.Duration) { m.flushCount++ }

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: baseTime}
	opts = append([]Option{
		WithClock(clock),
		WithLockTimeout(200 * time.Millisecond),
		WithLockPollInterval(5 * time.Millisecond),
		WithBackoff(ConstantBackoff(time.Minute)),
	}, opts...)
	s, err := NewStore(t.TempDir(), opts...)
	require.NoError(t, err)
	return s, clock
}

// enqueue adds one event and steps the clock so enqueue times are distinct.
func enqueue(t *testing.T, s *Store, clock *fakeClock, dest, payload string) string {
	t.Helper()
	id, err := s.Enqueue(dest, []byte(payload))
	require.NoError(t, err)
	clock.Advance(time.Millisecond)
	return id
}

func payloadsIn(t *testing.T, s *Store, st State) []string {
	t.Helper()
	names, err := s.list(st)
	require.NoError(t, err)
	out := make([]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.root, st.dir(), name))
		require.NoError(t, err)
		out = append(out, string(data))
	}
	return out
}
