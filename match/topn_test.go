package match

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ordsim/fingerprint"
)

func mustParse(t *testing.T, s string) fingerprint.Fingerprint {
	t.Helper()
	fp, err := fingerprint.Parse(s)
	require.NoError(t, err)
	return fp
}

func seqOf(pairs ...any) iter.Seq2[uint64, fingerprint.Fingerprint] {
	return func(yield func(uint64, fingerprint.Fingerprint) bool) {
		for i := 0; i < len(pairs); i += 2 {
			if !yield(pairs[i].(uint64), pairs[i+1].(fingerprint.Fingerprint)) {
				return
			}
		}
	}
}

func TestTopNOrdering(t *testing.T) {
	query := mustParse(t, "11111111")

	candidates := seqOf(
		uint64(1), mustParse(t, "11111111"), // score 8
		uint64(2), mustParse(t, "11110000"), // score 4 vs 4 -> 4
		uint64(3), mustParse(t, "11111110"), // score 7
		uint64(4), mustParse(t, "00000000"), // inverse -> score 8
	)

	got, skipped, err := TopN(query, candidates, 3)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.True(t, got.Equal(List{{1, 8}, {4, 8}, {3, 7}}))
}

func TestTopNStableTieBreak(t *testing.T) {
	query := mustParse(t, "11111111")
	same := mustParse(t, "11101111") // score 7 for everyone

	candidates := seqOf(
		uint64(5), same,
		uint64(1), same,
		uint64(9), same,
		uint64(3), same,
	)

	// Earlier-encountered candidates win ties, including eviction decisions.
	got, _, err := TopN(query, candidates, 2)
	require.NoError(t, err)
	assert.True(t, got.Equal(List{{5, 7}, {1, 7}}))
}

func TestTopNFewerCandidatesThanN(t *testing.T) {
	query := mustParse(t, "1111")

	got, _, err := TopN(query, seqOf(uint64(1), mustParse(t, "1111")), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTopNEmptyCandidates(t *testing.T) {
	got, skipped, err := TopN(mustParse(t, "1111"), seqOf(), 5)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Empty(t, got)
}

func TestTopNSkipsLengthMismatch(t *testing.T) {
	query := mustParse(t, "11111111")

	candidates := seqOf(
		uint64(1), mustParse(t, "11111111"),
		uint64(2), mustParse(t, "1111"), // wrong width, skipped
		uint64(3), mustParse(t, "11111110"),
	)

	got, skipped, err := TopN(query, candidates, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.True(t, got.Equal(List{{1, 8}, {3, 7}}))
}

func TestTopNInvalidN(t *testing.T) {
	_, _, err := TopN(mustParse(t, "1111"), seqOf(), 0)
	assert.ErrorIs(t, err, ErrInvalidN)

	_, _, err = TopN(mustParse(t, "1111"), seqOf(), -3)
	assert.ErrorIs(t, err, ErrInvalidN)
}
