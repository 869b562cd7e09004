package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreCreatesStateDirectories(t *testing.T) {
	s, _ := newTestStore(t)
	for _, st := range states {
		info, err := os.Stat(filepath.Join(s.Root(), st.dir()))
		require.NoError(t, err, st.String())
		assert.True(t, info.IsDir())
	}
}

func TestNewStoreRequiresRoot(t *testing.T) {
	_, err := NewStore("")
	require.Error(t, err)
}

func TestEnqueueWritesPendingFile(t *testing.T) {
	s, clock := newTestStore(t)

	id := enqueue(t, s, clock, "svc1", `{"event_type":"trigger"}`)

	e, err := parseName(id)
	require.NoError(t, err)
	assert.Equal(t, "svc1", e.destination)
	assert.True(t, e.enqueuedAt.Equal(baseTime))

	assert.Equal(t, []string{`{"event_type":"trigger"}`}, payloadsIn(t, s, StatePending))
	assert.Empty(t, payloadsIn(t, s, StateTransient), "staging file left behind")
}

func TestEnqueueSameMicrosecondDisambiguates(t *testing.T) {
	s, _ := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Enqueue("svc", []byte(fmt.Sprint(i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Len(t, map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true}, 3)
	assert.True(t, sort.StringsAreSorted(ids), "names must sort in enqueue order: %v", ids)
	assert.Equal(t, []string{"0", "1", "2"}, payloadsIn(t, s, StatePending))
	for _, id := range ids {
		e, err := parseName(id)
		require.NoError(t, err)
		assert.Equal(t, "svc", e.destination)
	}
}

func TestConcurrentEnqueueProducesDistinctFiles(t *testing.T) {
	s, _ := newTestStore(t)
	const n = 64

	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.Enqueue(fmt.Sprintf("svc%d", i%4), []byte(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	unique := map[string]bool{}
	for i := range ids {
		require.NoError(t, errs[i])
		unique[ids[i]] = true
	}
	assert.Len(t, unique, n)

	names, err := s.list(StatePending)
	require.NoError(t, err)
	assert.Len(t, names, n)
}

func TestEnqueueDoesNotWaitForFlushLock(t *testing.T) {
	s, clock := newTestStore(t)
	lock := s.newLock()
	require.NoError(t, lock.Acquire(context.Background()))
	defer lock.Release()

	enqueue(t, s, clock, "svc", "while-locked")
	assert.Equal(t, []string{"while-locked"}, payloadsIn(t, s, StatePending))
}

func TestEnqueueRejectsInvalidDestination(t *testing.T) {
	s, _ := newTestStore(t)
	for _, dest := range []string{"", ".", "..", "a/b", "a\\b"} {
		_, err := s.Enqueue(dest, []byte("x"))
		assert.True(t, errors.Is(err, ErrInvalidDestination), "dest %q: %v", dest, err)
	}
}

func TestParseName(t *testing.T) {
	e, err := parseName(eventName(1700000000000001, 0, "svc_with_underscores"))
	require.NoError(t, err)
	assert.Equal(t, "svc_with_underscores", e.destination)
	assert.EqualValues(t, 1700000000000001, e.enqueuedAt.UnixMicro())

	e, err = parseName(eventName(1700000000000001, 12, "svc"))
	require.NoError(t, err)
	assert.Equal(t, "svc", e.destination)

	for _, bad := range []string{"garbage", "_svc", "123_", "12a_svc", "123~_svc", "123~x1_svc"} {
		_, err := parseName(bad)
		assert.True(t, errors.Is(err, ErrMalformedName), bad)
	}
}

func TestEventNamesSortByTimeThenSequence(t *testing.T) {
	names := []string{
		eventName(200, 0, "a"),
		eventName(100, 2, "z"),
		eventName(100, 0, "z"),
		eventName(100, 10, "z"),
		eventName(9, 0, "m"),
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		eventName(9, 0, "m"),
		eventName(100, 0, "z"),
		eventName(100, 2, "z"),
		eventName(100, 10, "z"),
		eventName(200, 0, "a"),
	}, names)
}

func TestMoveRejectsForbiddenTransitions(t *testing.T) {
	s, clock := newTestStore(t)
	id := enqueue(t, s, clock, "svc", "x")

	require.NoError(t, s.move(id, StatePending, StateSucceeded))
	err := s.move(id, StateSucceeded, StatePending)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
