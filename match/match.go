// Package match implements Hamming-style scoring results and exact top-N
// selection over candidate fingerprints.
//
// Selection is deliberately brute force: the fingerprint space is small and
// fixed-width, candidate sets are bounded by collection size, and the
// inversion-aware score is not monotonic with plain Hamming distance in a way
// that pruning structures could exploit. Correctness over cleverness.
package match

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Match pairs an item ID with its similarity score.
//
// The JSON form is the compact pair [id, score], matching the stored
// neighbor-list encoding.
type Match struct {
	ID    uint64
	Score int
}

// MarshalJSON encodes the match as [id, score]. The ID goes through
// json.Number so the full uint64 range survives the round trip.
func (m Match) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]json.Number{
		json.Number(strconv.FormatUint(m.ID, 10)),
		json.Number(strconv.Itoa(m.Score)),
	})
}

// UnmarshalJSON decodes the [id, score] pair form.
func (m *Match) UnmarshalJSON(data []byte) error {
	var pair []json.Number
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("match must be an [id, score] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("match must be an [id, score] pair, got %d elements", len(pair))
	}
	id, err := strconv.ParseUint(pair[0].String(), 10, 64)
	if err != nil {
		return fmt.Errorf("match id must be a non-negative integer: %w", err)
	}
	score, err := strconv.Atoi(pair[1].String())
	if err != nil {
		return fmt.Errorf("match score must be an integer: %w", err)
	}
	m.ID = id
	m.Score = score
	return nil
}

// List is an ordered neighbor list: matches sorted by descending score, ties
// kept in discovery order.
type List []Match

// Truncate returns the first n entries (the whole list when n exceeds it).
func (l List) Truncate(n int) List {
	if n < 0 {
		n = 0
	}
	if n >= len(l) {
		return l
	}
	return l[:n]
}

// Equal reports whether both lists have the same matches in the same order.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}
	for i, m := range l {
		if m != other[i] {
			return false
		}
	}
	return true
}

// Contains reports whether the list holds a match for the given ID.
func (l List) Contains(id uint64) bool {
	for _, m := range l {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Merge combines an existing list with freshly discovered matches, re-sorts
// by descending score keeping the relative order of equal scores (existing
// entries before fresh ones), and truncates to n.
func Merge(existing, fresh List, n int) List {
	combined := make(List, 0, len(existing)+len(fresh))
	combined = append(combined, existing...)
	combined = append(combined, fresh...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Score > combined[j].Score
	})
	return combined.Truncate(n)
}

// Duplicates returns the leading entries scoring at or above threshold.
// With threshold equal to the fingerprint bit length this yields the exact
// (or exact-inverse) duplicates of the subject.
func Duplicates(l List, threshold int) List {
	for i, m := range l {
		if m.Score < threshold {
			return l[:i]
		}
	}
	return l
}
