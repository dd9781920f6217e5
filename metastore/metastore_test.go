package metastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testInscription() *Inscription {
	return &Inscription{
		ID:            42,
		TxID:          "9f2a77c1d3b8e4a5f6071829304a5b6c7d8e9f00112233445566778899aabbcc",
		Address:       "bc1qtest",
		ContentType:   "image/png",
		ContentHash:   "d41d8cd98f00b204e9800998ecf8427e",
		ContentLength: 1234,
		GenesisFee:    550,
		GenesisHeight: 780000,
		OutputValue:   10000,
		Timestamp:     1675351200,
	}
}

func TestPutAndLookups(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insc := testInscription()

	require.NoError(t, s.Put(ctx, insc))

	byID, err := s.ByID(ctx, insc.ID)
	require.NoError(t, err)
	assert.Equal(t, insc, byID)

	byTx, err := s.ByTxID(ctx, insc.TxID)
	require.NoError(t, err)
	assert.Equal(t, insc, byTx)
}

func TestPutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	insc := testInscription()

	require.NoError(t, s.Put(ctx, insc))

	// Re-processing a batch re-puts the same ID with possibly different
	// fields; the first record wins and no error surfaces.
	changed := *insc
	changed.Address = "bc1qother"
	require.NoError(t, s.Put(ctx, &changed))

	got, err := s.ByID(ctx, insc.ID)
	require.NoError(t, err)
	assert.Equal(t, insc.Address, got.Address)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.ByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ByTxID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinks(t *testing.T) {
	insc := testInscription()

	assert.Equal(t,
		"https://ordinals.com/inscription/"+insc.TxID+"i0",
		insc.InscriptionLink())
	assert.Equal(t,
		"https://ordinals.com/content/"+insc.TxID+"i0",
		insc.ContentLink())
	assert.Equal(t,
		"https://mempool.space/tx/"+insc.TxID,
		insc.MempoolLink())
	assert.Equal(t, "9f2a...bbcc", insc.TxIDEllipsis())
}

func TestTxIDEllipsisShort(t *testing.T) {
	insc := &Inscription{TxID: "abcd1234"}
	assert.Equal(t, "abcd1234", insc.TxIDEllipsis())
}
