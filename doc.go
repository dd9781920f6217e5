// Package ordsim is an exact perceptual-fingerprint similarity engine for
// ordinal inscription images.
//
// The engine compares fixed-width average-hash fingerprints with an
// inversion-insensitive Hamming-style score and serves top-N neighbor queries
// at interactive latency over hundreds of thousands of items. It is
// deliberately brute force: the fingerprint space is small and fixed-width,
// so exact scans beat approximate structures on both simplicity and recall.
//
// The moving parts:
//
//   - fingerprint: the bit-string type and the average-hash image encoder
//   - match: scoring results and exact top-N selection
//   - hashstore: the authoritative ID → fingerprint mapping (snapshot-persisted)
//   - simindex: the durable cache of precomputed neighbor lists
//   - maintain: incremental index maintenance as new items arrive
//   - ingest: the checkpointed upstream ingestion pipeline
//   - ordsim (this package): the tiered query Orchestrator
//
// A query tries the precomputed index first, then the out-of-process
// accelerated matcher, then an in-process scan over the full hash store.
package ordsim
