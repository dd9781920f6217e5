// Package checkpoint persists the ingestion watermark: the highest upstream
// ID fully processed. It is read on startup to resume and must only advance
// after a batch's writes are durable.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store persists a single checkpoint value.
type Store interface {
	// Load returns the persisted checkpoint, or 0 when none was saved yet.
	Load(ctx context.Context) (uint64, error)
	// Save durably records the checkpoint before returning.
	Save(ctx context.Context, id uint64) error
}

// FileStore persists the checkpoint in a local file, written atomically via
// temp file and rename.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the checkpoint file. A missing file means no checkpoint yet.
func (s *FileStore) Load(_ context.Context) (uint64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse checkpoint %q: %w", strings.TrimSpace(string(data)), err)
	}
	return id, nil
}

// Save writes the checkpoint atomically.
func (s *FileStore) Save(_ context.Context, id uint64) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.WriteString(strconv.FormatUint(id, 10) + "\n"); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
