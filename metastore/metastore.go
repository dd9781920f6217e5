// Package metastore persists inscription metadata used to enrich query
// results with user-facing links. The engine treats it as a collaborator: it
// stores what ingestion hands it and never validates the upstream schema.
package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when no inscription matches the lookup.
var ErrNotFound = errors.New("inscription not found")

// Inscription is one item's metadata record.
type Inscription struct {
	ID            uint64
	TxID          string
	Address       string
	ContentType   string
	ContentHash   string
	ContentLength int64
	GenesisFee    int64
	GenesisHeight int64
	OutputValue   int64
	Timestamp     int64 // unix seconds
}

// TxIDEllipsis returns a shortened display form of the transaction ID.
func (i *Inscription) TxIDEllipsis() string {
	if len(i.TxID) <= 8 {
		return i.TxID
	}
	return fmt.Sprintf("%s...%s", i.TxID[:4], i.TxID[len(i.TxID)-4:])
}

// InscriptionLink returns the ordinals.com inscription page.
func (i *Inscription) InscriptionLink() string {
	return fmt.Sprintf("https://ordinals.com/inscription/%si0", i.TxID)
}

// ContentLink returns the ordinals.com raw content URL.
func (i *Inscription) ContentLink() string {
	return fmt.Sprintf("https://ordinals.com/content/%si0", i.TxID)
}

// MempoolLink returns the mempool.space transaction page.
func (i *Inscription) MempoolLink() string {
	return fmt.Sprintf("https://mempool.space/tx/%s", i.TxID)
}

// Store is the SQLite-backed metadata store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the metadata database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS inscriptions (
			id             INTEGER PRIMARY KEY,
			tx_id          TEXT NOT NULL,
			address        TEXT NOT NULL,
			content_type   TEXT NOT NULL,
			content_hash   TEXT NOT NULL,
			content_length INTEGER NOT NULL,
			genesis_fee    INTEGER NOT NULL,
			genesis_height INTEGER NOT NULL,
			output_value   INTEGER NOT NULL,
			timestamp      INTEGER NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_inscriptions_tx_id ON inscriptions (tx_id)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the inscription, keyed by ID. Re-putting an existing ID is a
// no-op, so re-processing an ingestion batch is safe.
func (s *Store) Put(ctx context.Context, insc *Inscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO inscriptions
			(id, tx_id, address, content_type, content_hash, content_length,
			 genesis_fee, genesis_height, output_value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insc.ID, insc.TxID, insc.Address, insc.ContentType, insc.ContentHash,
		insc.ContentLength, insc.GenesisFee, insc.GenesisHeight,
		insc.OutputValue, insc.Timestamp)
	if err != nil {
		return fmt.Errorf("insert inscription %d: %w", insc.ID, err)
	}
	return nil
}

// ByID returns the inscription with the given ID, or ErrNotFound.
func (s *Store) ByID(ctx context.Context, id uint64) (*Inscription, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, tx_id, address, content_type, content_hash, content_length,
		        genesis_fee, genesis_height, output_value, timestamp
		 FROM inscriptions WHERE id = ?`, id))
}

// ByTxID returns the inscription with the given transaction ID, or ErrNotFound.
func (s *Store) ByTxID(ctx context.Context, txID string) (*Inscription, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, tx_id, address, content_type, content_hash, content_length,
		        genesis_fee, genesis_height, output_value, timestamp
		 FROM inscriptions WHERE tx_id = ?`, txID))
}

func (s *Store) scanOne(row *sql.Row) (*Inscription, error) {
	var insc Inscription
	err := row.Scan(&insc.ID, &insc.TxID, &insc.Address, &insc.ContentType,
		&insc.ContentHash, &insc.ContentLength, &insc.GenesisFee,
		&insc.GenesisHeight, &insc.OutputValue, &insc.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read inscription: %w", err)
	}
	return &insc, nil
}
