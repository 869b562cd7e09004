package enqueuer

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/domain"
)

// Queue is the producer side of the durable queue.
type Queue interface {
	Enqueue(destinationID string, payload []byte) (string, error)
}

// Receipt identifies a stored event.
type Receipt struct {
	EventID     string `json:"event_id"`
	IncidentKey string `json:"incident_key"`
}

// Enqueuer validates events and hands them to the queue. It never takes the
// queue's flush lock, so callers do not block on delivery.
type Enqueuer struct {
	q       Queue
	agentID string
	logger  *zap.Logger
}

func New(q Queue, agentID string, logger *zap.Logger) *Enqueuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enqueuer{q: q, agentID: agentID, logger: logger}
}

// Enqueue persists evt keyed by its service key. A trigger without an
// incident key gets a fresh one so later acknowledge/resolve calls can
// refer to it.
func (e *Enqueuer) Enqueue(ctx context.Context, evt domain.Event) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := evt.Validate(); err != nil {
		return Receipt{}, err
	}
	if evt.EventType == domain.Trigger && evt.IncidentKey == "" {
		evt.IncidentKey = uuid.NewString()
	}
	if evt.AgentID == "" {
		evt.AgentID = e.agentID
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "enqueuer: marshal event")
	}
	id, err := e.q.Enqueue(evt.ServiceKey, payload)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "enqueuer: enqueue event")
	}

	e.logger.Info("event queued",
		zap.String("event_id", id),
		zap.String("event_type", string(evt.EventType)),
		zap.String("incident_key", evt.IncidentKey),
	)
	return Receipt{EventID: id, IncidentKey: evt.IncidentKey}, nil
}
