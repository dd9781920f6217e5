// Package simindex is the durable cache of precomputed neighbor lists, one
// per indexed item, backed by SQLite with an in-memory roaring bitmap of
// indexed IDs for O(1) existence checks.
package simindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/ordsim/codec"
	"github.com/hupe1980/ordsim/match"
)

// Index is the similarity index. Safe for concurrent readers; mutations come
// from a single maintenance job at a time (running two maintainers against
// the same index is out of contract and may interleave writes).
type Index struct {
	db    *sql.DB
	codec codec.Codec

	mu      sync.RWMutex
	defined *roaring64.Bitmap
}

// Open opens (or creates) the similarity index database at path and loads the
// set of indexed IDs.
func Open(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open similarity index: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS similarity_index (
			id      INTEGER PRIMARY KEY,
			matches TEXT NOT NULL
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create similarity index schema: %w", err)
	}

	idx := &Index{
		db:      db,
		codec:   codec.Default,
		defined: roaring64.New(),
	}
	if err := idx.loadDefined(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) loadDefined(ctx context.Context) error {
	rows, err := idx.db.QueryContext(ctx, `SELECT id FROM similarity_index`)
	if err != nil {
		return fmt.Errorf("load indexed ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan indexed id: %w", err)
		}
		idx.defined.Add(id)
	}
	return rows.Err()
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// IsDefined reports whether the item already has a cached neighbor list.
func (idx *Index) IsDefined(id uint64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.defined.Contains(id)
}

// HighestID returns the highest indexed item ID, or 0 when nothing is
// indexed. This is the incremental-maintenance watermark; it is distinct
// from the ingestion checkpoint, which may run ahead of indexing.
func (idx *Index) HighestID() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.defined.IsEmpty() {
		return 0
	}
	return idx.defined.Maximum()
}

// ListByID returns the cached neighbor list for the item. A missing record
// yields an empty list and no error: absence signals "not yet indexed".
func (idx *Index) ListByID(ctx context.Context, id uint64) (match.List, error) {
	var raw string
	err := idx.db.QueryRowContext(ctx,
		`SELECT matches FROM similarity_index WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return match.List{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read neighbor list %d: %w", id, err)
	}

	var list match.List
	if err := idx.codec.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode neighbor list %d: %w", id, err)
	}
	return list, nil
}

// SaveNew inserts a neighbor list only when the item is not yet indexed.
// A second call for the same ID is a no-op even with a different payload:
// first write wins, which makes the initial backfill idempotent.
func (idx *Index) SaveNew(ctx context.Context, id uint64, list match.List) error {
	raw, err := idx.codec.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode neighbor list %d: %w", id, err)
	}

	if _, err := idx.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO similarity_index (id, matches) VALUES (?, ?)`,
		id, string(raw)); err != nil {
		return fmt.Errorf("insert neighbor list %d: %w", id, err)
	}

	idx.mu.Lock()
	idx.defined.Add(id)
	idx.mu.Unlock()
	return nil
}

// UpdateOld overwrites the neighbor list of an already-indexed item.
// Updating an absent record is a no-op.
func (idx *Index) UpdateOld(ctx context.Context, id uint64, list match.List) error {
	raw, err := idx.codec.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode neighbor list %d: %w", id, err)
	}

	if _, err := idx.db.ExecContext(ctx,
		`UPDATE similarity_index SET matches = ? WHERE id = ?`,
		string(raw), id); err != nil {
		return fmt.Errorf("update neighbor list %d: %w", id, err)
	}
	return nil
}

// Count returns the number of indexed items.
func (idx *Index) Count() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.defined.GetCardinality()
}
