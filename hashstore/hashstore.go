// Package hashstore holds the authoritative mapping of item ID to fingerprint.
//
// The whole mapping lives in memory and is persisted as a single
// self-describing snapshot blob. Loading wholesale is deliberate: the
// fallback query path scans every fingerprint anyway.
package hashstore

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"sync"

	"github.com/hupe1980/ordsim/blobstore"
	"github.com/hupe1980/ordsim/fingerprint"
)

// CorruptError indicates that a persisted snapshot could not be decoded.
// It is fatal at startup: silently degrading to an empty store would make
// every item look new and trigger a full re-ingest.
type CorruptError struct {
	Reason string
	cause  error
}

func (e *CorruptError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corrupt fingerprint snapshot: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("corrupt fingerprint snapshot: %s", e.Reason)
}

func (e *CorruptError) Unwrap() error { return e.cause }

// Options configures a Store.
type Options struct {
	// Name is the snapshot blob name.
	Name string
	// Compression is the snapshot compression algorithm name ("none",
	// "zstd", "lz4"). Existing snapshots record their own algorithm.
	Compression string
}

// DefaultOptions are the default Store options.
var DefaultOptions = Options{
	Name:        "fingerprints.snap",
	Compression: "zstd",
}

// Store is the in-memory fingerprint mapping with snapshot persistence.
//
// Reads are safe for concurrent use. Writes are expected from a single
// background job at a time; running two writers against the same snapshot is
// out of contract.
type Store struct {
	mu    sync.RWMutex
	blobs blobstore.Store
	opts  Options
	bits  int // bit length shared by all fingerprints, 0 until first Put/Load
	fps   map[uint64]fingerprint.Fingerprint
	ids   []uint64 // sorted ascending, mirrors fps keys
	dirty bool
}

// Open loads the snapshot from the blob store, or starts empty when no
// snapshot exists yet. A snapshot that exists but cannot be decoded is a
// CorruptError, never an empty store.
func Open(ctx context.Context, blobs blobstore.Store, optFns ...func(*Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		blobs: blobs,
		opts:  opts,
		fps:   make(map[uint64]fingerprint.Fingerprint),
	}

	data, err := blobs.Get(ctx, opts.Name)
	if err != nil {
		if err == blobstore.ErrNotFound {
			return s, nil
		}
		return nil, fmt.Errorf("read fingerprint snapshot: %w", err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	s.bits = snap.Bits
	for key, raw := range snap.Data {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, &CorruptError{Reason: fmt.Sprintf("invalid item id %q", key), cause: err}
		}
		fp, err := fingerprint.Parse(raw)
		if err != nil {
			return nil, &CorruptError{Reason: fmt.Sprintf("invalid fingerprint for item %d", id), cause: err}
		}
		if fp.Bits() != snap.Bits {
			return nil, &CorruptError{
				Reason: fmt.Sprintf("item %d has %d bits, snapshot declares %d", id, fp.Bits(), snap.Bits),
			}
		}
		s.fps[id] = fp
		s.ids = append(s.ids, id)
	}
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })

	return s, nil
}

// Get returns the fingerprint for the given item ID.
func (s *Store) Get(id uint64) (fingerprint.Fingerprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fp, ok := s.fps[id]
	return fp, ok
}

// Put records the fingerprint for the given item ID. Re-putting the same
// fingerprint for the same ID is a no-op, so re-processing a batch after a
// crash is safe. A fingerprint whose bit length differs from the store's is
// rejected: one store holds one hash size.
func (s *Store) Put(id uint64, fp fingerprint.Fingerprint) error {
	if fp.IsZero() {
		return fmt.Errorf("empty fingerprint for item %d", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bits == 0 {
		s.bits = fp.Bits()
	} else if fp.Bits() != s.bits {
		return fmt.Errorf("fingerprint for item %d has %d bits, store holds %d-bit fingerprints",
			id, fp.Bits(), s.bits)
	}

	if existing, ok := s.fps[id]; ok {
		if existing.Equal(fp) {
			return nil
		}
		s.fps[id] = fp
		s.dirty = true
		return nil
	}

	s.fps[id] = fp
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	s.ids = append(s.ids, 0)
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
	s.dirty = true
	return nil
}

// All iterates items in ascending ID order. This order is the stable
// candidate order for top-N tie-breaking, so it must not change.
//
// The iteration works over the ID snapshot taken when All is called;
// concurrent Puts are not reflected.
func (s *Store) All() iter.Seq2[uint64, fingerprint.Fingerprint] {
	s.mu.RLock()
	ids := append([]uint64(nil), s.ids...)
	s.mu.RUnlock()

	return func(yield func(uint64, fingerprint.Fingerprint) bool) {
		for _, id := range ids {
			s.mu.RLock()
			fp, ok := s.fps[id]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(id, fp) {
				return
			}
		}
	}
}

// Len returns the number of stored fingerprints.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.fps)
}

// Bits returns the shared fingerprint bit length, or 0 for an empty store.
func (s *Store) Bits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bits
}

// HighestID returns the largest stored item ID, or 0 for an empty store.
func (s *Store) HighestID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.ids) == 0 {
		return 0
	}
	return s.ids[len(s.ids)-1]
}

// LowestID returns the smallest stored item ID, or 0 for an empty store.
func (s *Store) LowestID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.ids) == 0 {
		return 0
	}
	return s.ids[0]
}

// Save persists the snapshot when it has unsaved changes. The blob write is
// atomic, so a crash during Save leaves the previous snapshot readable.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	if !s.dirty {
		s.mu.RUnlock()
		return nil
	}
	snap := snapshot{
		Bits: s.bits,
		Data: make(map[string]string, len(s.fps)),
	}
	for id, fp := range s.fps {
		snap.Data[strconv.FormatUint(id, 10)] = fp.String()
	}
	s.mu.RUnlock()

	data, err := encodeSnapshot(&snap, s.opts.Compression)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, s.opts.Name, data); err != nil {
		return fmt.Errorf("write fingerprint snapshot: %w", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}
