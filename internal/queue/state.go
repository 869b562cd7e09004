package queue

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// State is the lifecycle directory an event file currently lives in.
type State int

const (
	StatePending State = iota
	StateTransient
	StateSucceeded
	StateFailed
)

var states = []State{StatePending, StateTransient, StateSucceeded, StateFailed}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateTransient:
		return "transient"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State key JSON maps.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range states {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return errors.Errorf("queue: unknown state %q", text)
}

// dir is the subdirectory name under the queue root.
func (s State) dir() string {
	switch s {
	case StatePending:
		return "pdq"
	case StateTransient:
		return "tmp"
	case StateSucceeded:
		return "suc"
	case StateFailed:
		return "err"
	default:
		return ""
	}
}

// transitions lists every rename the store may perform.
var transitions = map[State][]State{
	StatePending: {StateSucceeded, StateFailed},
	StateFailed:  {StatePending},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *Store) path(state State, name string) string {
	return filepath.Join(s.root, state.dir(), name)
}

// move atomically renames name from one state directory to another.
func (s *Store) move(name string, from, to State) error {
	if !canTransition(from, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	if err := os.Rename(s.path(from, name), s.path(to, name)); err != nil {
		return errors.Wrapf(err, "queue: move %s from %s to %s", name, from, to)
	}
	return nil
}

// list returns the regular file names in state, sorted lexically.
func (s *Store) list(state State) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, state.dir()))
	if err != nil {
		return nil, errors.Wrapf(err, "queue: read %s directory", state)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
