package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	return map[string]Store{
		"Local":  local,
		"Memory": NewMemoryStore(),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "a.snap", []byte("first")))
			require.NoError(t, store.Put(ctx, "b.snap", []byte("second")))

			data, err := store.Get(ctx, "a.snap")
			require.NoError(t, err)
			assert.Equal(t, []byte("first"), data)

			// Overwrite replaces the contents.
			require.NoError(t, store.Put(ctx, "a.snap", []byte("updated")))
			data, err = store.Get(ctx, "a.snap")
			require.NoError(t, err)
			assert.Equal(t, []byte("updated"), data)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"a.snap", "b.snap"}, names)

			names, err = store.List(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, []string{"b.snap"}, names)

			require.NoError(t, store.Delete(ctx, "a.snap"))
			_, err = store.Get(ctx, "a.snap")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing blob succeeds.
			assert.NoError(t, store.Delete(ctx, "a.snap"))
		})
	}
}

func TestLocalStoreNestedNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "snapshots/fp.snap", []byte("x")))

	data, err := store.Get(ctx, "snapshots/fp.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	names, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/fp.snap"}, names)
}
