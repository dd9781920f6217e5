// Package ingest pulls inscriptions from the upstream source in checkpointed
// windows, fingerprints image content, and persists fingerprints and
// metadata. The checkpoint only advances after a window's writes are
// durable, so a crash re-processes at most one window; every downstream
// write is idempotent.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/ordsim/checkpoint"
	"github.com/hupe1980/ordsim/fingerprint"
	"github.com/hupe1980/ordsim/hashstore"
	"github.com/hupe1980/ordsim/internal/metrics"
	"github.com/hupe1980/ordsim/metastore"
	"github.com/hupe1980/ordsim/upstream"
)

// Options configures a Pipeline.
type Options struct {
	// PageSize is the listing window size.
	PageSize int
	// RetryBackoff is the fixed sleep between retries of a window that hit a
	// transient upstream failure. Retrying never gives up on its own.
	RetryBackoff time.Duration
	// ContentRPS rate-limits per-item content fetches. Zero disables limiting.
	ContentRPS float64
	// Logger receives progress and per-item failure logs.
	Logger *slog.Logger
	// ProgressEvery controls progress-log cadence in items.
	ProgressEvery int
}

// DefaultOptions are the default Pipeline options.
var DefaultOptions = Options{
	PageSize:      60,
	RetryBackoff:  10 * time.Second,
	ProgressEvery: 100,
}

// Pipeline is the checkpointed ingestion loop.
type Pipeline struct {
	upstream *upstream.Client
	hashes   *hashstore.Store
	meta     *metastore.Store
	ckpt     checkpoint.Store
	encoder  *fingerprint.Encoder
	limiter  *rate.Limiter
	opts     Options
}

// New creates a Pipeline. meta may be nil to skip metadata persistence.
func New(up *upstream.Client, hashes *hashstore.Store, meta *metastore.Store, ckpt checkpoint.Store, encoder *fingerprint.Encoder, optFns ...func(*Options)) *Pipeline {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions.PageSize
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultOptions.RetryBackoff
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultOptions.ProgressEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.ContentRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.ContentRPS), 1)
	}

	return &Pipeline{
		upstream: up,
		hashes:   hashes,
		meta:     meta,
		ckpt:     ckpt,
		encoder:  encoder,
		limiter:  limiter,
		opts:     opts,
	}
}

// Run ingests from the persisted checkpoint until the upstream source is
// exhausted or ctx is cancelled. Transient upstream failures retry the same
// window indefinitely with a fixed backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	cp, err := p.ckpt.Load(ctx)
	if err != nil {
		return err
	}

	left, err := p.remaining(ctx, cp)
	if err != nil {
		return err
	}
	p.opts.Logger.Info("ingestion starting", "checkpoint", cp, "remaining", left)

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		from, to := cp+1, cp+uint64(p.opts.PageSize)
		page, err := p.window(ctx, from, to)
		if err != nil {
			return err
		}
		if len(page.Results) == 0 {
			// The ID sequence has gaps. An empty window only means "caught
			// up" when nothing exists past the checkpoint at all; otherwise
			// the whole window is a gap and everything left lies beyond it.
			left, err := p.remaining(ctx, cp)
			if err != nil {
				return err
			}
			if left == 0 {
				p.opts.Logger.Info("ingestion caught up", "checkpoint", cp, "processed", processed)
				return nil
			}
			p.opts.Logger.Info("skipping empty window",
				"from", from, "to", to, "remaining", left)
			if err := p.ckpt.Save(ctx, to); err != nil {
				return err
			}
			cp = to
			continue
		}

		if err := p.processWindow(ctx, page.Results); err != nil {
			return err
		}

		// Fingerprints first, checkpoint last: a crash between the two
		// re-processes the window, which every write tolerates. The
		// checkpoint advances to the highest listed number, not the window
		// end: a half-filled window means the source tip is inside it.
		last := cp
		for _, entry := range page.Results {
			last = max(last, entry.Number)
		}
		if err := p.hashes.Save(ctx); err != nil {
			return err
		}
		if err := p.ckpt.Save(ctx, last); err != nil {
			return err
		}

		cp = last
		processed += len(page.Results)
		if processed%p.opts.ProgressEvery < p.opts.PageSize {
			p.opts.Logger.Info("ingestion progress",
				"checkpoint", cp, "processed", processed, "stored", p.hashes.Len())
		}
	}
}

// remaining probes how many items exist past the checkpoint, retrying
// transient failures forever.
func (p *Pipeline) remaining(ctx context.Context, after uint64) (int, error) {
	for {
		n, err := p.upstream.Remaining(ctx, after)
		if err == nil {
			return n, nil
		}
		if !upstream.IsTransient(err) {
			return 0, err
		}
		metrics.IngestRetriesTotal.Inc()
		p.opts.Logger.Warn("remaining probe failed, retrying",
			"after", after, "backoff", p.opts.RetryBackoff, "error", err)
		if err := sleep(ctx, p.opts.RetryBackoff); err != nil {
			return 0, err
		}
	}
}

// window fetches one listing window, retrying transient failures forever.
func (p *Pipeline) window(ctx context.Context, from, to uint64) (*upstream.Page, error) {
	for {
		page, err := p.upstream.List(ctx, p.opts.PageSize, from, to)
		if err == nil {
			return page, nil
		}
		if !upstream.IsTransient(err) {
			return nil, err
		}
		metrics.IngestRetriesTotal.Inc()
		p.opts.Logger.Warn("listing window failed, retrying",
			"from", from, "to", to, "backoff", p.opts.RetryBackoff, "error", err)
		if err := sleep(ctx, p.opts.RetryBackoff); err != nil {
			return nil, err
		}
	}
}

// processWindow handles each entry of one window. Non-transient per-item
// problems (missing content, undecodable images, non-image types) are
// skipped; transient failures retry the item in place so the window as a
// whole either completes or blocks.
func (p *Pipeline) processWindow(ctx context.Context, entries []upstream.Entry) error {
	for i := 0; i < len(entries); {
		entry := entries[i]
		retry, err := p.processEntry(ctx, entry)
		if err != nil {
			return err
		}
		if retry {
			metrics.IngestRetriesTotal.Inc()
			p.opts.Logger.Warn("content fetch failed, retrying",
				"ord_id", entry.Number, "backoff", p.opts.RetryBackoff)
			if err := sleep(ctx, p.opts.RetryBackoff); err != nil {
				return err
			}
			continue
		}
		i++
	}
	return nil
}

// processEntry ingests one inscription. The second return value asks the
// caller to retry the same entry after a backoff.
func (p *Pipeline) processEntry(ctx context.Context, entry upstream.Entry) (bool, error) {
	if !strings.HasPrefix(entry.ContentType, "image/") {
		// Non-image inscriptions get no fingerprint and no content fetch,
		// but their metadata record still exists so ID and tx-id lookups
		// cover the whole collection.
		metrics.IngestItemsTotal.WithLabelValues("skipped").Inc()
		return false, p.putMeta(ctx, entry, "")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}

	content, err := p.upstream.Content(ctx, entry.Number)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			p.opts.Logger.Warn("listed content missing upstream", "ord_id", entry.Number)
			metrics.IngestItemsTotal.WithLabelValues("missing").Inc()
			return false, p.putMeta(ctx, entry, "")
		}
		if upstream.IsTransient(err) {
			return true, nil
		}
		return false, err
	}

	fp, err := p.encoder.Encode(content)
	if err != nil {
		// Declared an image, does not decode as one. Keep the metadata so
		// the record exists, just without a fingerprint.
		p.opts.Logger.Warn("content does not decode as an image",
			"ord_id", entry.Number, "content_type", entry.ContentType, "error", err)
		metrics.IngestItemsTotal.WithLabelValues("undecodable").Inc()
		return false, p.putMeta(ctx, entry, contentHash(content))
	}

	if err := p.hashes.Put(entry.Number, fp); err != nil {
		return false, err
	}
	metrics.IngestItemsTotal.WithLabelValues("fingerprinted").Inc()

	return false, p.putMeta(ctx, entry, contentHash(content))
}

func contentHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// putMeta upserts the metadata record. hash is empty when the content was
// never fetched.
func (p *Pipeline) putMeta(ctx context.Context, entry upstream.Entry, hash string) error {
	if p.meta == nil {
		return nil
	}
	fee, _ := entry.GenesisFee.Int64()
	value, _ := entry.Value.Int64()
	return p.meta.Put(ctx, &metastore.Inscription{
		ID:            entry.Number,
		TxID:          entry.TxID,
		Address:       entry.Address,
		ContentType:   entry.ContentType,
		ContentHash:   hash,
		ContentLength: entry.ContentLength,
		GenesisFee:    fee,
		GenesisHeight: entry.GenesisHeight,
		OutputValue:   value,
		Timestamp:     entry.Timestamp / 1000,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
