package domain

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

type EventType string

const (
	Trigger     EventType = "trigger"
	Acknowledge EventType = "acknowledge"
	Resolve     EventType = "resolve"
)

var (
	ErrServiceKeyRequired  = errors.New("event service key is required")
	ErrUnknownEventType    = errors.New("event type must be trigger, acknowledge or resolve")
	ErrIncidentKeyRequired = errors.New("acknowledge and resolve events need an incident key")
	ErrDescriptionRequired = errors.New("trigger events need a description")
)

// Event is the payload delivered to the events API.
type Event struct {
	ServiceKey  string          `json:"service_key"`
	EventType   EventType       `json:"event_type"`
	IncidentKey string          `json:"incident_key,omitempty"`
	Description string          `json:"description,omitempty"`
	Client      string          `json:"client,omitempty"`
	ClientURL   string          `json:"client_url,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	AgentID     string          `json:"agent_id,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.ServiceKey) == "" {
		return ErrServiceKeyRequired
	}
	switch e.EventType {
	case Trigger:
		if strings.TrimSpace(e.Description) == "" {
			return ErrDescriptionRequired
		}
	case Acknowledge, Resolve:
		if strings.TrimSpace(e.IncidentKey) == "" {
			return ErrIncidentKeyRequired
		}
	default:
		return errors.Wrapf(ErrUnknownEventType, "%q", e.EventType)
	}
	if len(e.Details) > 0 && !json.Valid(e.Details) {
		return errors.New("event details must be valid JSON")
	}
	return nil
}
