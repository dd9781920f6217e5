package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "checkpoint"))

	id, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint")
	s := NewFileStore(path)

	require.NoError(t, s.Save(ctx, 12345))

	id, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), id)

	// A fresh store over the same path resumes from the saved value.
	id, err = NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), id)
}

func TestFileStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "checkpoint"))

	require.NoError(t, s.Save(ctx, 100))
	require.NoError(t, s.Save(ctx, 200))

	id, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), id)
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "checkpoint")

	require.NoError(t, NewFileStore(path).Save(ctx, 7))

	id, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestFileStoreCorruptContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint")
	require.NoError(t, os.WriteFile(path, []byte("not a number\n"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}
