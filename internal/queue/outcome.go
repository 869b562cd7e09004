package queue

import "context"

// Outcome is a consumer's verdict on one event. The set is closed; the flush
// pass treats any other value as NotConsumed.
type Outcome int

const (
	// Consumed means the event was delivered.
	Consumed Outcome = iota + 1
	// BadEntry means the payload can never be delivered; fail it now.
	BadEntry
	// NotConsumed leaves the event pending and skips its destination this pass.
	NotConsumed
	// StopAll leaves the event pending and aborts the whole pass.
	StopAll
	// BackoffBadEntry backs the destination off and fails the event once the
	// retry limit is exceeded.
	BackoffBadEntry
	// BackoffNotConsumed backs the destination off without any attempt limit.
	BackoffNotConsumed
)

func (o Outcome) String() string {
	switch o {
	case Consumed:
		return "consumed"
	case BadEntry:
		return "bad_entry"
	case NotConsumed:
		return "not_consumed"
	case StopAll:
		return "stop_all"
	case BackoffBadEntry:
		return "backoff_bad_entry"
	case BackoffNotConsumed:
		return "backoff_not_consumed"
	default:
		return "unknown"
	}
}

// Consumer delivers one event payload and classifies the result.
type Consumer interface {
	Consume(ctx context.Context, payload []byte, eventID string) Outcome
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, payload []byte, eventID string) Outcome

// Consume implements Consumer.
func (fn ConsumerFunc) Consume(ctx context.Context, payload []byte, eventID string) Outcome {
	return fn(ctx, payload, eventID)
}
