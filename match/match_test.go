package match

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchJSONPairForm(t *testing.T) {
	data, err := json.Marshal(Match{ID: 42, Score: 250})
	require.NoError(t, err)
	assert.JSONEq(t, `[42,250]`, string(data))

	var m Match
	require.NoError(t, json.Unmarshal([]byte(`[42,250]`), &m))
	assert.Equal(t, Match{ID: 42, Score: 250}, m)
}

func TestMatchJSONFullIDRange(t *testing.T) {
	// IDs are uint64 end to end; the pair form must not squeeze them
	// through a signed integer on the way out.
	m := Match{ID: math.MaxUint64, Score: 256}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `[18446744073709551615,256]`, string(data))

	var got Match
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, m, got)
}

func TestMatchJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Object", `{"id":1,"score":2}`},
		{"NegativeID", `[-1,2]`},
		{"FractionalID", `[1.5,2]`},
		{"WrongArity", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Match
			assert.Error(t, json.Unmarshal([]byte(tt.data), &m))
		})
	}
}

func TestListJSONRoundTrip(t *testing.T) {
	l := List{{ID: 1, Score: 256}, {ID: 7, Score: 200}}

	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,256],[7,200]]`, string(data))

	var got List
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Equal(l))
}

func TestTruncate(t *testing.T) {
	l := List{{1, 3}, {2, 2}, {3, 1}}

	assert.Len(t, l.Truncate(2), 2)
	assert.Len(t, l.Truncate(5), 3)
	assert.Len(t, l.Truncate(0), 0)
	assert.Len(t, l.Truncate(-1), 0)
}

func TestContains(t *testing.T) {
	l := List{{1, 3}, {2, 2}}
	assert.True(t, l.Contains(2))
	assert.False(t, l.Contains(3))
}

func TestMergeStable(t *testing.T) {
	// Equal scores keep existing entries ahead of fresh ones.
	existing := List{{ID: 1, Score: 200}, {ID: 2, Score: 150}}
	fresh := List{{ID: 10, Score: 200}, {ID: 11, Score: 180}}

	merged := Merge(existing, fresh, 3)
	assert.True(t, merged.Equal(List{{1, 200}, {10, 200}, {11, 180}}))
}

func TestMergeTruncates(t *testing.T) {
	existing := List{{1, 100}}
	fresh := List{{2, 300}, {3, 200}}

	merged := Merge(existing, fresh, 2)
	assert.True(t, merged.Equal(List{{2, 300}, {3, 200}}))
}

func TestMergeEmptyFresh(t *testing.T) {
	existing := List{{1, 100}, {2, 90}}
	merged := Merge(existing, nil, 5)
	assert.True(t, merged.Equal(existing))
}

func TestDuplicates(t *testing.T) {
	l := List{{1, 256}, {2, 256}, {3, 255}, {4, 100}}

	assert.True(t, Duplicates(l, 256).Equal(List{{1, 256}, {2, 256}}))
	assert.True(t, Duplicates(l, 255).Equal(List{{1, 256}, {2, 256}, {3, 255}}))
	assert.Empty(t, Duplicates(l, 300))
}
