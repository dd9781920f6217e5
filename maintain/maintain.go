// Package maintain brings the similarity index up to date after new items
// are appended to the hash store, in work proportional to
// (existing × new) + (new × total) instead of (total × total).
package maintain

import (
	"context"
	"iter"
	"log/slog"

	"github.com/hupe1980/ordsim/fingerprint"
	"github.com/hupe1980/ordsim/hashstore"
	"github.com/hupe1980/ordsim/internal/metrics"
	"github.com/hupe1980/ordsim/match"
	"github.com/hupe1980/ordsim/simindex"
)

// Options configures a Maintainer.
type Options struct {
	// TopN is the neighbor list length. Must match the length used for the
	// lists already in the index.
	TopN int
	// Logger receives progress and per-item failure logs.
	Logger *slog.Logger
	// ProgressEvery controls progress-log cadence in items.
	ProgressEvery int
}

// DefaultOptions are the default Maintainer options.
var DefaultOptions = Options{
	TopN:          20,
	ProgressEvery: 100,
}

// Maintainer incrementally refreshes the similarity index. It expects to run
// as the only writer; two maintainers against one index may interleave
// writes inconsistently.
//
// Precondition: the index already satisfies the from-scratch equivalence
// invariant for every item at or below its watermark. The very first build
// is just the degenerate case where the watermark is 0 and every item is
// new.
type Maintainer struct {
	hashes *hashstore.Store
	index  *simindex.Index
	opts   Options
}

// New creates a Maintainer over the given stores.
func New(hashes *hashstore.Store, index *simindex.Index, optFns ...func(*Options)) *Maintainer {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultOptions.TopN
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultOptions.ProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Maintainer{hashes: hashes, index: index, opts: opts}
}

// Run performs one maintenance round. Per-item failures are logged and
// skipped; every persisted write is individually durable, so a crash mid-run
// loses at most uncommitted work and re-running is safe.
func (m *Maintainer) Run(ctx context.Context) error {
	watermark := m.index.HighestID()

	var oldIDs, newIDs []uint64
	for id := range m.hashes.All() {
		if id > watermark {
			newIDs = append(newIDs, id)
		} else {
			oldIDs = append(oldIDs, id)
		}
	}

	m.opts.Logger.Info("maintenance round starting",
		"watermark", watermark, "old", len(oldIDs), "new", len(newIDs))

	if err := m.indexNew(ctx, newIDs); err != nil {
		return err
	}
	if err := m.refreshOld(ctx, oldIDs, newIDs); err != nil {
		return err
	}

	m.opts.Logger.Info("maintenance round done", "indexed", m.index.Count())
	return nil
}

// indexNew runs each new item against the entire store and inserts its
// neighbor list. Already-defined items are skipped so a restarted run does
// not redo committed work.
func (m *Maintainer) indexNew(ctx context.Context, newIDs []uint64) error {
	for progress, id := range newIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress%m.opts.ProgressEvery == 0 {
			m.opts.Logger.Info("indexing new items", "progress", progress, "total", len(newIDs))
		}
		if m.index.IsDefined(id) {
			continue
		}

		fp, ok := m.hashes.Get(id)
		if !ok {
			continue
		}

		list, skipped, err := match.TopN(fp, m.hashes.All(), m.opts.TopN)
		if err != nil {
			m.opts.Logger.Error("matching failed", "ord_id", id, "error", err)
			metrics.MaintainerWritesTotal.WithLabelValues("failed").Inc()
			continue
		}
		m.noteSkipped(id, skipped)

		if err := m.index.SaveNew(ctx, id, list); err != nil {
			m.opts.Logger.Error("saving neighbor list failed", "ord_id", id, "error", err)
			metrics.MaintainerWritesTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.MaintainerWritesTotal.WithLabelValues("new").Inc()
	}
	return nil
}

// refreshOld re-scores each old item against only the new set — the
// asymptotic saving — and rewrites its list only when the merge changes it.
func (m *Maintainer) refreshOld(ctx context.Context, oldIDs, newIDs []uint64) error {
	if len(newIDs) == 0 {
		return nil
	}

	for progress, id := range oldIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress%m.opts.ProgressEvery == 0 {
			m.opts.Logger.Info("refreshing old items", "progress", progress, "total", len(oldIDs))
		}

		fp, ok := m.hashes.Get(id)
		if !ok {
			continue
		}

		fresh, skipped, err := match.TopN(fp, m.newSet(newIDs), m.opts.TopN)
		if err != nil {
			m.opts.Logger.Error("matching against new set failed", "ord_id", id, "error", err)
			metrics.MaintainerWritesTotal.WithLabelValues("failed").Inc()
			continue
		}
		m.noteSkipped(id, skipped)

		existing, err := m.index.ListByID(ctx, id)
		if err != nil {
			m.opts.Logger.Error("reading neighbor list failed", "ord_id", id, "error", err)
			metrics.MaintainerWritesTotal.WithLabelValues("failed").Inc()
			continue
		}

		merged := match.Merge(existing, fresh, m.opts.TopN)
		if merged.Equal(existing) {
			metrics.MaintainerWritesTotal.WithLabelValues("unchanged").Inc()
			continue
		}

		if err := m.index.UpdateOld(ctx, id, merged); err != nil {
			m.opts.Logger.Error("updating neighbor list failed", "ord_id", id, "error", err)
			metrics.MaintainerWritesTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.MaintainerWritesTotal.WithLabelValues("refreshed").Inc()
	}
	return nil
}

// newSet iterates only the new items, in ascending ID order so tie-breaking
// matches a full scan (old candidates always precede new ones there too).
func (m *Maintainer) newSet(newIDs []uint64) iter.Seq2[uint64, fingerprint.Fingerprint] {
	return func(yield func(uint64, fingerprint.Fingerprint) bool) {
		for _, id := range newIDs {
			fp, ok := m.hashes.Get(id)
			if !ok {
				continue
			}
			if !yield(id, fp) {
				return
			}
		}
	}
}

func (m *Maintainer) noteSkipped(id uint64, skipped int) {
	if skipped > 0 {
		m.opts.Logger.Warn("skipped candidates with mismatched fingerprint length",
			"ord_id", id, "count", skipped)
		metrics.ComparisonsSkippedTotal.Add(float64(skipped))
	}
}
