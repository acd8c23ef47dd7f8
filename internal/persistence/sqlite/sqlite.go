// Package sqlite persists conference snapshots in a SQLite database.
// Each snapshot section is stored as one JSON document in a single
// table; Save and Load each run inside one transaction so a snapshot
// is always observed whole or not at all.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/conference-manager/internal/persistence"
)

const (
	sectionUsers    = "users"
	sectionRooms    = "rooms"
	sectionEvents   = "events"
	sectionMessages = "messages"
)

var sections = []string{sectionUsers, sectionRooms, sectionEvents, sectionMessages}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store is a persistence.Store backed by a SQLite database file. Use
// the dsn ":memory:" for an ephemeral store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if necessary) the database at dsn and ensures
// the snapshot table exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time; a second connection would
	// only contend on the single snapshot table.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save writes all four snapshot sections in one transaction.
func (s *Store) Save(ctx context.Context, snap persistence.Snapshot) error {
	payloads := map[string]any{
		sectionUsers:    snap.Users,
		sectionRooms:    snap.Rooms,
		sectionEvents:   snap.Events,
		sectionMessages: snap.Messages,
	}

	return s.withTransaction(ctx, nil, func(tx *sql.Tx) error {
		updatedAt := s.now().UTC().Format(time.RFC3339)
		for _, name := range sections {
			data, err := json.Marshal(payloads[name])
			if err != nil {
				return fmt.Errorf("failed to encode %s snapshot: %w", name, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
				name, data, updatedAt)
			if err != nil {
				return fmt.Errorf("failed to write %s snapshot: %w", name, err)
			}
		}
		return nil
	})
}

// Load reads all four snapshot sections in one transaction. The
// boolean is false when the store has never been saved to; a store with
// only some sections present is corrupt and yields an error.
func (s *Store) Load(ctx context.Context) (persistence.Snapshot, bool, error) {
	var snap persistence.Snapshot
	found := 0

	err := s.withTransaction(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		for _, name := range sections {
			var data []byte
			err := tx.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE name = ?", name).Scan(&data)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read %s snapshot: %w", name, err)
			}

			var target any
			switch name {
			case sectionUsers:
				target = &snap.Users
			case sectionRooms:
				target = &snap.Rooms
			case sectionEvents:
				target = &snap.Events
			case sectionMessages:
				target = &snap.Messages
			}
			if err := json.Unmarshal(data, target); err != nil {
				return fmt.Errorf("failed to decode %s snapshot: %w", name, err)
			}
			found++
		}
		return nil
	})
	if err != nil {
		return persistence.Snapshot{}, false, err
	}

	switch found {
	case 0:
		return persistence.Snapshot{}, false, nil
	case len(sections):
		return snap, true, nil
	default:
		return persistence.Snapshot{}, false, fmt.Errorf("snapshot incomplete: found %d of %d sections", found, len(sections))
	}
}

func (s *Store) withTransaction(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
