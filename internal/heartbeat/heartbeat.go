// Package heartbeat reports agent liveness and queue health to a remote
// endpoint on a schedule.
package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/persist"
	"github.com/SirClappington/pdagent/internal/queue"
)

// Identity is the persisted agent identity.
type Identity struct {
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentID returns the id stored at path, creating and persisting a new one
// on first use or when the stored document is unusable. Processes starting
// together on a fresh directory all end up with the first id written.
func AgentID(path string, logger *zap.Logger) (string, error) {
	doc := persist.NewDocument[Identity](path, logger)
	if id, ok := doc.Get(); ok && id.AgentID != "" {
		return id.AgentID, nil
	}

	id := Identity{AgentID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	created, err := doc.Create(id)
	if err != nil {
		return "", errors.Wrap(err, "heartbeat: create agent id")
	}
	if created {
		return id.AgentID, nil
	}
	if cur, ok := doc.Get(); ok && cur.AgentID != "" {
		return cur.AgentID, nil
	}

	// The existing document is unusable; replace it.
	if err := doc.Set(id); err != nil {
		return "", errors.Wrap(err, "heartbeat: persist agent id")
	}
	return id.AgentID, nil
}

// StatsSource supplies the queue snapshot sent with each heartbeat.
type StatsSource interface {
	Stats(destinationID string) (queue.Snapshot, error)
}

type payload struct {
	AgentID      string         `json:"agent_id"`
	AgentVersion string         `json:"agent_version"`
	SentAt       time.Time      `json:"sent_at"`
	AgentStats   queue.Snapshot `json:"agent_stats"`
}

// Task posts one heartbeat per tick.
type Task struct {
	URL     string
	AgentID string
	Version string
	Stats   StatsSource
	Client  *http.Client
	Logger  *zap.Logger
}

func (t *Task) Name() string { return "heartbeat" }

func (t *Task) Tick(ctx context.Context) error {
	snap, err := t.Stats.Stats("")
	if err != nil {
		return errors.Wrap(err, "heartbeat: collect stats")
	}

	body, err := json.Marshal(payload{
		AgentID:      t.AgentID,
		AgentVersion: t.Version,
		SentAt:       time.Now().UTC(),
		AgentStats:   snap,
	})
	if err != nil {
		return errors.Wrap(err, "heartbeat: marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "heartbeat: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "heartbeat: post")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("heartbeat: unexpected status %d", resp.StatusCode)
	}
	if t.Logger != nil {
		t.Logger.Debug("heartbeat sent", zap.Int("pending", snap.States[queue.StatePending].Count))
	}
	return nil
}
