// Package persist stores small JSON documents on disk with atomic
// replace-on-write semantics.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const fileMode os.FileMode = 0o644

// Document is a single JSON value persisted at a fixed path.
type Document[T any] struct {
	path   string
	logger *zap.Logger
}

// NewDocument returns a Document backed by path. A nil logger discards output.
func NewDocument[T any](path string, logger *zap.Logger) *Document[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document[T]{path: path, logger: logger}
}

// Get returns the last persisted value. A missing or unreadable document
// yields the zero value and false; corruption is logged, not returned.
func (d *Document[T]) Get() (T, bool) {
	var zero T
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("persisted document unreadable", zap.String("path", d.path), zap.Error(err))
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		d.logger.Warn("persisted document corrupt, ignoring", zap.String("path", d.path), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set writes v to a sibling temp file and renames it over the canonical
// path. The previous document survives any failure.
func (d *Document[T]) Set(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "persist: marshal %s", d.path)
	}

	tmp := d.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return errors.Wrapf(err, "persist: open %s", tmp)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "persist: write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "persist: sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "persist: close %s", tmp)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "persist: rename into %s", filepath.Base(d.path))
	}
	return nil
}

// Create persists v only when no document exists yet. It reports false,
// leaving the existing file alone, when another writer got there first.
func (d *Document[T]) Create(v T) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, errors.Wrapf(err, "persist: marshal %s", d.path)
	}

	f, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.new")
	if err != nil {
		return false, errors.Wrapf(err, "persist: stage %s", d.path)
	}
	staged := f.Name()
	defer os.Remove(staged)

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, errors.Wrapf(err, "persist: write %s", staged)
	}
	if err := f.Chmod(fileMode); err != nil {
		_ = f.Close()
		return false, errors.Wrapf(err, "persist: chmod %s", staged)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return false, errors.Wrapf(err, "persist: sync %s", staged)
	}
	if err := f.Close(); err != nil {
		return false, errors.Wrapf(err, "persist: close %s", staged)
	}

	if err := os.Link(staged, d.path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "persist: publish %s", filepath.Base(d.path))
	}
	return true, nil
}
