// Package queue is the durable, directory-backed event queue.
//
// Event files move between four state directories by atomic rename:
//
//	pending   -> succeeded | failed
//	failed    -> pending   (Resurrect)
//
// Producers call Enqueue without any locking. Flush, Dequeue and Resurrect
// serialize across processes on an advisory lock file under the root.
package queue

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	lockFile     = "queue.lock"
	backoffFile  = "backoff.json"
	countersFile = "counters.json"
)

// Store is a queue rooted at one directory. It is safe for concurrent use.
type Store struct {
	root   string
	cfg    Config
	logger *zap.Logger
}

// NewStore opens the queue rooted at root, creating its directories.
func NewStore(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("queue: root directory is required")
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	for _, st := range states {
		if err := os.MkdirAll(filepath.Join(root, st.dir()), 0o755); err != nil {
			return nil, errors.Wrapf(err, "queue: create %s directory", st)
		}
	}

	return &Store{
		root:   root,
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("queue_root", root)),
	}, nil
}

// Root returns the queue root directory.
func (s *Store) Root() string { return s.root }

// Enqueue stores payload for destinationID and returns the new event id.
// It never takes the flush lock.
func (s *Store) Enqueue(destinationID string, payload []byte) (string, error) {
	if err := validDestination(destinationID); err != nil {
		return "", err
	}

	us := s.cfg.Clock.Now().UnixMicro()
	for seq := 0; seq <= maxSeq; seq++ {
		name := eventName(us, seq, destinationID)
		ok, err := s.claim(name, payload)
		if err != nil {
			return "", err
		}
		if ok {
			s.logger.Debug("event enqueued", zap.String("event_id", name), zap.String("destination", destinationID))
			return name, nil
		}
	}
	return "", errors.Wrapf(ErrNameExhausted, "destination %s", destinationID)
}

// claim stages payload under name in the transient directory and hard-links
// it into pending. It reports false when name is already taken.
func (s *Store) claim(name string, payload []byte) (bool, error) {
	if s.nameTaken(name) {
		return false, nil
	}

	staging := s.path(StateTransient, name)
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.cfg.FileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "queue: create %s", staging)
	}
	defer os.Remove(staging)

	if err := s.writeEvent(f, payload); err != nil {
		return false, err
	}

	if err := os.Link(staging, s.path(StatePending, name)); err != nil {
		// ErrNotExist: a concurrent Cleanup removed the staging file.
		if errors.Is(err, os.ErrExist) || errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "queue: publish %s", name)
	}
	return true, nil
}

func (s *Store) writeEvent(f *os.File, payload []byte) error {
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "queue: write %s", f.Name())
	}
	if err := s.fixPermissions(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "queue: sync %s", f.Name())
	}
	return errors.Wrapf(f.Close(), "queue: close %s", f.Name())
}

// fixPermissions restores the configured mode when the process umask
// stripped bits from it.
func (s *Store) fixPermissions(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "queue: stat %s", f.Name())
	}
	want := s.cfg.FileMode.Perm()
	got := info.Mode().Perm()
	if got&want == want {
		return nil
	}

	s.logger.Warn("umask restricted event file permissions, correcting",
		zap.String("file", f.Name()),
		zap.Stringer("got", got),
		zap.Stringer("want", want),
	)
	s.cfg.Metrics.AddPermissionFix()
	return errors.Wrapf(f.Chmod(want), "queue: chmod %s", f.Name())
}

// nameTaken reports whether name already exists in a terminal state, which
// only happens when the clock stepped backwards.
func (s *Store) nameTaken(name string) bool {
	for _, st := range []State{StateSucceeded, StateFailed} {
		if _, err := os.Lstat(s.path(st, name)); err == nil {
			return true
		}
	}
	return false
}
