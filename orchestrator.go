package ordsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/ordsim/fingerprint"
	"github.com/hupe1980/ordsim/hashstore"
	"github.com/hupe1980/ordsim/internal/metrics"
	"github.com/hupe1980/ordsim/match"
	"github.com/hupe1980/ordsim/metastore"
	"github.com/hupe1980/ordsim/simindex"
	"github.com/hupe1980/ordsim/upstream"
)

// Result is one enriched query match. The metadata fields are empty when no
// metadata store is configured or the item has no record yet.
type Result struct {
	ID              uint64 `json:"id"`
	Score           int    `json:"score"`
	ContentType     string `json:"content_type,omitempty"`
	ContentLength   int64  `json:"content_length,omitempty"`
	ContentLink     string `json:"content_link,omitempty"`
	InscriptionLink string `json:"inscription_link,omitempty"`
	MempoolLink     string `json:"mempool_link,omitempty"`
}

// HashesLoader loads the full hash store for the fallback tier.
// It is invoked lazily, at most once per process under concurrent first use.
type HashesLoader func(ctx context.Context) (*hashstore.Store, error)

// Orchestrator serves similarity queries through three tiers, first success
// wins: the precomputed similarity index, the accelerated out-of-process
// matcher, and the in-process scan over the full hash store.
//
// Safe for concurrent use. The only mutable state on the serving path is the
// lazily loaded fallback hash store, guarded by a single-flight group so a
// cold start loads it once instead of once per inflight request.
type Orchestrator struct {
	index      *simindex.Index
	encoder    *fingerprint.Encoder
	loadHashes HashesLoader

	hashes atomic.Pointer[hashstore.Store]
	sf     singleflight.Group

	opts options
}

// NewOrchestrator creates an Orchestrator. index and loadHashes are
// required; the accelerated tier, the on-demand upstream path, and metadata
// enrichment are optional.
func NewOrchestrator(index *simindex.Index, encoder *fingerprint.Encoder, loadHashes HashesLoader, optFns ...Option) (*Orchestrator, error) {
	if index == nil {
		return nil, errors.New("similarity index is required")
	}
	if encoder == nil {
		return nil, errors.New("fingerprint encoder is required")
	}
	if loadHashes == nil {
		return nil, errors.New("hash store loader is required")
	}

	opts := options{
		topN:   20,
		logger: NewTextLogger(slog.LevelInfo),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{
		index:      index,
		encoder:    encoder,
		loadHashes: loadHashes,
		opts:       opts,
	}, nil
}

// ByID serves a similarity query for a known item ID.
//
// When the ID is absent from the hash store, the on-demand path fetches its
// content upstream and treats it like an arbitrary-file query. An ID that is
// absent both locally and upstream yields ErrNotFound.
func (o *Orchestrator) ByID(ctx context.Context, id uint64, topN int) ([]Result, error) {
	if topN <= 0 {
		topN = o.opts.topN
	}
	log := o.opts.logger.WithOrdID(id)

	// Index tier.
	if o.index.IsDefined(id) {
		start := time.Now()
		list, err := o.index.ListByID(ctx, id)
		if err == nil {
			list = o.ensureSelf(list.Truncate(topN), id, topN)
			o.observe("index", "ok", start)
			return o.enrich(ctx, list), nil
		}
		// A broken index read should not take queries down while the
		// fallback tiers still work.
		log.Error("index tier read failed", "error", err)
		o.observe("index", "error", start)
	}

	// Accelerated tier: one attempt, bounded timeout, then fall through.
	if o.opts.accel != nil {
		start := time.Now()
		list, err := o.opts.accel.MatchesByID(ctx, id, topN)
		if err == nil {
			list = o.ensureSelf(list.Truncate(topN), id, topN)
			o.observe("accel", "ok", start)
			return o.enrich(ctx, list), nil
		}
		log.WithTier("accel").Info("accelerated matcher unavailable", "error", err)
		o.observe("accel", "error", start)
	}

	// Fallback tier.
	start := time.Now()
	hashes, err := o.fallbackHashes(ctx)
	if err != nil {
		o.observe("fallback", "error", start)
		return nil, err
	}

	fp, known := hashes.Get(id)
	if !known {
		return o.onDemand(ctx, id, topN, hashes, log)
	}

	list, skipped, err := match.TopN(fp, hashes.All(), topN)
	if err != nil {
		o.observe("fallback", "error", start)
		return nil, err
	}
	if skipped > 0 {
		log.Warn("skipped candidates with mismatched fingerprint length", "count", skipped)
	}
	list = o.ensureSelf(list, id, topN)
	o.observe("fallback", "ok", start)
	return o.enrich(ctx, list), nil
}

// ByImage fingerprints raw image bytes and serves an arbitrary-file query.
// Undecodable bytes yield a fingerprint.DecodeError.
func (o *Orchestrator) ByImage(ctx context.Context, data []byte, topN int) ([]Result, error) {
	fp, err := o.encoder.Encode(data)
	if err != nil {
		return nil, err
	}
	return o.ByFingerprint(ctx, fp, topN)
}

// ByFingerprint serves an arbitrary-fingerprint query. No self-inclusion
// rule applies: the subject is not an indexed item.
func (o *Orchestrator) ByFingerprint(ctx context.Context, fp fingerprint.Fingerprint, topN int) ([]Result, error) {
	if topN <= 0 {
		topN = o.opts.topN
	}

	if o.opts.accel != nil {
		start := time.Now()
		list, err := o.opts.accel.MatchesByFingerprint(ctx, fp, topN)
		if err == nil {
			o.observe("accel", "ok", start)
			return o.enrich(ctx, list.Truncate(topN)), nil
		}
		o.opts.logger.WithTier("accel").Info("accelerated matcher unavailable", "error", err)
		o.observe("accel", "error", start)
	}

	start := time.Now()
	hashes, err := o.fallbackHashes(ctx)
	if err != nil {
		o.observe("fallback", "error", start)
		return nil, err
	}

	list, skipped, err := match.TopN(fp, hashes.All(), topN)
	if err != nil {
		o.observe("fallback", "error", start)
		return nil, err
	}
	if skipped > 0 {
		o.opts.logger.Warn("skipped candidates with mismatched fingerprint length", "count", skipped)
	}
	o.observe("fallback", "ok", start)
	return o.enrich(ctx, list), nil
}

// onDemand handles a subject ID with no stored fingerprint: fetch the
// content upstream, fingerprint it, and query like an arbitrary file.
func (o *Orchestrator) onDemand(ctx context.Context, id uint64, topN int, hashes *hashstore.Store, log *Logger) ([]Result, error) {
	if o.opts.upstream == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	content, err := o.opts.upstream.Content(ctx, id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			// Below the known range and missing upstream: terminal.
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		if upstream.IsTransient(err) {
			// A single failed attempt surfaces as empty results, not a crash.
			log.Warn("on-demand content fetch failed", "error", err)
			return []Result{}, nil
		}
		return nil, err
	}

	fp, err := o.encoder.Encode(content)
	if err != nil {
		return nil, err
	}

	list, skipped, err := match.TopN(fp, hashes.All(), topN)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("skipped candidates with mismatched fingerprint length", "count", skipped)
	}
	return o.enrich(ctx, list), nil
}

// ensureSelf guarantees the subject appears in its own result list. With
// heavy duplicate saturation the exact item can be pushed out of a small
// top-N; callers asking for an item by ID always see it represented. The
// evicted entry may be a legitimately high-scoring match, an accepted
// trade-off for guaranteed self-presence.
func (o *Orchestrator) ensureSelf(list match.List, id uint64, topN int) match.List {
	if list.Contains(id) {
		return list
	}
	self := match.Match{ID: id, Score: o.maxScore()}
	if len(list) < topN {
		return append(list, self)
	}
	out := append(match.List(nil), list...)
	out[len(out)-1] = self
	return out
}

// maxScore is the score of an exact self-match. The stored fingerprints are
// authoritative for bit length: the configured encoder can disagree with
// data ingested under a different hash size. Before the fallback store has
// loaded the encoder is the only source available.
func (o *Orchestrator) maxScore() int {
	if hs := o.hashes.Load(); hs != nil && hs.Bits() > 0 {
		return hs.Bits()
	}
	return o.encoder.Bits()
}

// fallbackHashes returns the lazily loaded hash store, loading it at most
// once per process under concurrent first access.
func (o *Orchestrator) fallbackHashes(ctx context.Context) (*hashstore.Store, error) {
	if hs := o.hashes.Load(); hs != nil {
		return hs, nil
	}

	v, err, _ := o.sf.Do("hashes", func() (any, error) {
		if hs := o.hashes.Load(); hs != nil {
			return hs, nil
		}
		// Detached from the triggering request so one dropped connection
		// does not abort the load every waiter shares.
		hs, err := o.loadHashes(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		o.hashes.Store(hs)
		o.opts.logger.Info("fallback hash store loaded", "items", hs.Len(), "bits", hs.Bits())
		return hs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load fallback hash store: %w", err)
	}
	return v.(*hashstore.Store), nil
}

func (o *Orchestrator) enrich(ctx context.Context, list match.List) []Result {
	results := make([]Result, len(list))
	for i, m := range list {
		results[i] = Result{ID: m.ID, Score: m.Score}
		if o.opts.meta == nil {
			continue
		}
		insc, err := o.opts.meta.ByID(ctx, m.ID)
		if err != nil {
			if !errors.Is(err, metastore.ErrNotFound) {
				o.opts.logger.Warn("metadata lookup failed", "ord_id", m.ID, "error", err)
			}
			continue
		}
		results[i].ContentType = insc.ContentType
		results[i].ContentLength = insc.ContentLength
		results[i].ContentLink = insc.ContentLink()
		results[i].InscriptionLink = insc.InscriptionLink()
		results[i].MempoolLink = insc.MempoolLink()
	}
	return results
}

func (o *Orchestrator) observe(tier, status string, start time.Time) {
	metrics.QueriesTotal.WithLabelValues(tier, status).Inc()
	if status == "ok" {
		metrics.QueryDurationSeconds.WithLabelValues(tier).Observe(time.Since(start).Seconds())
	}
}
