package queue

import "github.com/pkg/errors"

var (
	// ErrEmptyQueue signals that no pending events remain.
	ErrEmptyQueue = errors.New("queue has no pending events")
	// ErrInvalidDestination is returned for destination ids unusable in a filename.
	ErrInvalidDestination = errors.New("queue destination id is invalid")
	// ErrMalformedName marks a file in a state directory whose name cannot be parsed.
	ErrMalformedName = errors.New("queue event filename is malformed")
	// ErrInvalidTransition is returned for a state move the store never performs.
	ErrInvalidTransition = errors.New("queue state transition is not allowed")
	// ErrNameExhausted means every disambiguator for one microsecond was taken.
	ErrNameExhausted = errors.New("queue could not allocate a unique event name")
	// ErrNilConsumer is returned when Flush or Dequeue is called without a consumer.
	ErrNilConsumer = errors.New("queue consumer is nil")
)
