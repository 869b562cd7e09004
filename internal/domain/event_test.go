package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	cases := []struct {
		name string
		evt  Event
		want error
	}{
		{"trigger", Event{ServiceKey: "svc", EventType: Trigger, Description: "disk full"}, nil},
		{"resolve", Event{ServiceKey: "svc", EventType: Resolve, IncidentKey: "inc"}, nil},
		{"missing service key", Event{EventType: Trigger, Description: "x"}, ErrServiceKeyRequired},
		{"trigger without description", Event{ServiceKey: "svc", EventType: Trigger}, ErrDescriptionRequired},
		{"ack without incident", Event{ServiceKey: "svc", EventType: Acknowledge}, ErrIncidentKeyRequired},
		{"unknown type", Event{ServiceKey: "svc", EventType: "page"}, ErrUnknownEventType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.evt.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEventValidateRejectsBadDetails(t *testing.T) {
	evt := Event{ServiceKey: "svc", EventType: Trigger, Description: "x", Details: json.RawMessage(`{`)}
	assert.Error(t, evt.Validate())
}
