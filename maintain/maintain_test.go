package maintain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ordsim/blobstore"
	"github.com/hupe1980/ordsim/fingerprint"
	"github.com/hupe1980/ordsim/hashstore"
	"github.com/hupe1980/ordsim/simindex"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestIndex(t *testing.T) *simindex.Index {
	t.Helper()

	idx, err := simindex.Open(context.Background(), filepath.Join(t.TempDir(), "simindex.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func newTestStore(t *testing.T, fps map[uint64]string) *hashstore.Store {
	t.Helper()

	s, err := hashstore.Open(context.Background(), blobstore.NewMemoryStore())
	require.NoError(t, err)
	for id, raw := range fps {
		fp, err := fingerprint.Parse(raw)
		require.NoError(t, err)
		require.NoError(t, s.Put(id, fp))
	}
	return s
}

// testFingerprints is a small 8-bit collection with exact duplicates,
// inverses, and middling similarity.
var testFingerprints = map[uint64]string{
	1: "11110000",
	2: "11110000", // duplicate of 1
	3: "00001111", // inverse of 1
	4: "10101010",
	5: "11100000",
	6: "01010101", // inverse of 4
	7: "11111111",
}

func TestFullBuild(t *testing.T) {
	ctx := context.Background()
	hashes := newTestStore(t, testFingerprints)
	index := openTestIndex(t)

	m := New(hashes, index, func(o *Options) {
		o.TopN = 3
		o.Logger = quietLogger()
	})
	require.NoError(t, m.Run(ctx))

	assert.Equal(t, uint64(len(testFingerprints)), index.Count())

	// Every list contains the subject itself at full score: the subject is a
	// candidate in its own scan.
	for id := range testFingerprints {
		list, err := index.ListByID(ctx, id)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.True(t, list.Contains(id), "item %d missing from its own list", id)
		assert.Equal(t, 8, list[0].Score)
	}

	// Item 1, its duplicate, and its inverse all score 8 and are discovered
	// in ascending ID order.
	list, err := index.ListByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), list[0].ID)
	assert.Equal(t, uint64(2), list[1].ID)
	assert.Equal(t, uint64(3), list[2].ID)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	hashes := newTestStore(t, testFingerprints)
	index := openTestIndex(t)

	m := New(hashes, index, func(o *Options) {
		o.TopN = 3
		o.Logger = quietLogger()
	})
	require.NoError(t, m.Run(ctx))

	var before []string
	for id := uint64(1); id <= 7; id++ {
		list, err := index.ListByID(ctx, id)
		require.NoError(t, err)
		before = append(before, fmt.Sprint(id, list))
	}

	// A second round with no new items must not change anything.
	require.NoError(t, m.Run(ctx))

	var after []string
	for id := uint64(1); id <= 7; id++ {
		list, err := index.ListByID(ctx, id)
		require.NoError(t, err)
		after = append(after, fmt.Sprint(id, list))
	}
	assert.Equal(t, before, after)
}

// TestIncrementalMatchesFullBuild is the core maintenance guarantee: indexing
// in two rounds yields exactly the lists a single from-scratch build yields.
func TestIncrementalMatchesFullBuild(t *testing.T) {
	ctx := context.Background()
	const topN = 3

	// Full build over everything at once.
	fullIndex := openTestIndex(t)
	full := New(newTestStore(t, testFingerprints), fullIndex, func(o *Options) {
		o.TopN = topN
		o.Logger = quietLogger()
	})
	require.NoError(t, full.Run(ctx))

	// Incremental build: first the low half, then everything.
	lowHalf := map[uint64]string{}
	for id, raw := range testFingerprints {
		if id <= 4 {
			lowHalf[id] = raw
		}
	}

	incrIndex := openTestIndex(t)
	incrStore := newTestStore(t, lowHalf)
	incr := New(incrStore, incrIndex, func(o *Options) {
		o.TopN = topN
		o.Logger = quietLogger()
	})
	require.NoError(t, incr.Run(ctx))

	for id, raw := range testFingerprints {
		if id > 4 {
			fp, err := fingerprint.Parse(raw)
			require.NoError(t, err)
			require.NoError(t, incrStore.Put(id, fp))
		}
	}
	require.NoError(t, incr.Run(ctx))

	for id := range testFingerprints {
		want, err := fullIndex.ListByID(ctx, id)
		require.NoError(t, err)
		got, err := incrIndex.ListByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "item %d: full %v, incremental %v", id, want, got)
	}
}
