package ordsim

import (
	"github.com/hupe1980/ordsim/accel"
	"github.com/hupe1980/ordsim/metastore"
	"github.com/hupe1980/ordsim/upstream"
)

type options struct {
	topN     int
	logger   *Logger
	accel    *accel.Client
	upstream *upstream.Client
	meta     *metastore.Store
}

// Option configures the Orchestrator.
type Option func(*options)

// WithTopN sets the default number of neighbors returned when the caller
// does not specify one. Defaults to 20.
func WithTopN(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.topN = n
		}
	}
}

// WithLogger sets the logger. Defaults to a text logger at info level.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAccel enables the accelerated serving tier.
// Without it, queries go straight from the index tier to the fallback scan.
func WithAccel(c *accel.Client) Option {
	return func(o *options) {
		o.accel = c
	}
}

// WithUpstream enables the on-demand path for subject IDs that are not in
// the hash store yet: their content is fetched and fingerprinted on the fly.
func WithUpstream(c *upstream.Client) Option {
	return func(o *options) {
		o.upstream = c
	}
}

// WithMetadata enables result enrichment with inscription metadata and
// user-facing links.
func WithMetadata(s *metastore.Store) Option {
	return func(o *options) {
		o.meta = s
	}
}
