package match

import (
	"container/heap"
	"errors"
	"iter"

	"github.com/hupe1980/ordsim/fingerprint"
)

// ErrInvalidN is returned when the requested result count is not positive.
var ErrInvalidN = errors.New("n must be positive")

// TopN scans the candidates once and returns the n best matches for the query,
// sorted by descending score. Among equal scores, the earlier-encountered
// candidate ranks first, so the result is deterministic for any stable
// candidate iteration order. The query's own ID may appear in candidates; it
// scores the maximum and callers decide whether to exclude it.
//
// Candidates whose bit length does not match the query are skipped: a wrong
// width fingerprint is a store invariant violation and must not silently
// corrupt the ranking. The number of skipped candidates is returned so
// callers can log the violation.
func TopN(query fingerprint.Fingerprint, candidates iter.Seq2[uint64, fingerprint.Fingerprint], n int) (List, int, error) {
	if n <= 0 {
		return nil, 0, ErrInvalidN
	}

	h := &bottomHeap{}
	seq := 0
	skipped := 0
	for id, fp := range candidates {
		score, err := query.Score(fp)
		if err != nil {
			skipped++
			continue
		}
		e := entry{m: Match{ID: id, Score: score}, seq: seq}
		seq++
		if h.Len() < n {
			heap.Push(h, e)
			continue
		}
		// Equal score does not displace: the incumbent was seen earlier.
		if score > (*h)[0].m.Score {
			(*h)[0] = e
			heap.Fix(h, 0)
		}
	}

	out := make(List, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(entry).m
	}
	return out, skipped, nil
}

type entry struct {
	m   Match
	seq int
}

// bottomHeap is a min-heap keeping the current n best entries, with the worst
// retained entry on top. For equal scores the later-encountered entry is
// considered worse, preserving the stable tie-break on eviction.
type bottomHeap []entry

func (h bottomHeap) Len() int { return len(h) }

func (h bottomHeap) Less(i, j int) bool {
	if h[i].m.Score != h[j].m.Score {
		return h[i].m.Score < h[j].m.Score
	}
	return h[i].seq > h[j].seq
}

func (h bottomHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bottomHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *bottomHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
