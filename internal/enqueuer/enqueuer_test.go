package enqueuer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirClappington/pdagent/internal/domain"
	"github.com/SirClappington/pdagent/internal/queue"
)

func TestEnqueueTriggerAssignsIncidentKey(t *testing.T) {
	store, err := queue.NewStore(t.TempDir())
	require.NoError(t, err)
	enq := New(store, "agent-1", nil)

	rec, err := enq.Enqueue(context.Background(), domain.Event{
		ServiceKey:  "svc",
		EventType:   domain.Trigger,
		Description: "disk full",
	})
	require.NoError(t, err)
	_, err = uuid.Parse(rec.IncidentKey)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.EventID)

	var got domain.Event
	consumer := queue.ConsumerFunc(func(_ context.Context, payload []byte, eventID string) queue.Outcome {
		assert.Equal(t, rec.EventID, eventID)
		require.NoError(t, json.Unmarshal(payload, &got))
		return queue.Consumed
	})
	require.ErrorIs(t, store.Flush(context.Background(), consumer), queue.ErrEmptyQueue)

	assert.Equal(t, "svc", got.ServiceKey)
	assert.Equal(t, rec.IncidentKey, got.IncidentKey)
	assert.Equal(t, "agent-1", got.AgentID)
}

func TestEnqueueKeepsCallerIncidentKey(t *testing.T) {
	q := &fakeQueue{}
	rec, err := New(q, "", nil).Enqueue(context.Background(), domain.Event{
		ServiceKey:  "svc",
		EventType:   domain.Resolve,
		IncidentKey: "inc-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "inc-7", rec.IncidentKey)
	assert.Equal(t, "svc", q.dest)
}

func TestEnqueueRejectsInvalidEvent(t *testing.T) {
	q := &fakeQueue{}
	_, err := New(q, "", nil).Enqueue(context.Background(), domain.Event{ServiceKey: "svc", EventType: domain.Acknowledge})
	assert.ErrorIs(t, err, domain.ErrIncidentKeyRequired)
	assert.Zero(t, q.calls)
}

type fakeQueue struct {
	dest  string
	calls int
}

func (f *fakeQueue) Enqueue(dest string, _ []byte) (string, error) {
	f.dest = dest
	f.calls++
	return "id", nil
}
