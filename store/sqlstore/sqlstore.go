// Package sqlstore implements the skipped message key store and the session storage
// on SQLite.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	doubleratchet "github.com/stalker-loki/heraldratchet"
)

// Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

var (
	_ doubleratchet.KeyStore       = (*Store)(nil)
	_ doubleratchet.KeysExtender   = (*Store)(nil)
	_ doubleratchet.SessionStorage = (*Store)(nil)
)

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err := initDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: failed to initialize database: %w", err)
	}
	return &Store{db: db}, nil
}

func initDB(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS message_keys (
		pubkey BLOB NOT NULL,
		n INTEGER NOT NULL,
		mk BLOB NOT NULL,
		PRIMARY KEY (pubkey, n)
	);
	CREATE TABLE IF NOT EXISTS sessions (
		id BLOB PRIMARY KEY,
		state BLOB NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetKey(pubKey doubleratchet.Key, n uint32) (doubleratchet.Key, bool, error) {
	var (
		mk  doubleratchet.Key
		raw []byte
	)
	err := s.db.QueryRow(`SELECT mk FROM message_keys WHERE pubkey = ? AND n = ?`, pubKey[:], n).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return mk, false, nil
	case err != nil:
		return mk, false, err
	case len(raw) != len(mk):
		return mk, false, fmt.Errorf("sqlstore: corrupted message key for %s/%d", pubKey, n)
	}
	copy(mk[:], raw)
	return mk, true, nil
}

func (s *Store) StoreKey(pubKey doubleratchet.Key, n uint32, mk doubleratchet.Key) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO message_keys (pubkey, n, mk) VALUES (?, ?, ?)`, pubKey[:], n, mk[:])
	return err
}

// Extend stores all keys in a single transaction.
func (s *Store) Extend(pubKey doubleratchet.Key, start uint32, keys []doubleratchet.Key) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO message_keys (pubkey, n, mk) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range keys {
		if _, err := stmt.Exec(pubKey[:], start+uint32(i), keys[i][:]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RemoveKey(pubKey doubleratchet.Key, n uint32) error {
	_, err := s.db.Exec(`DELETE FROM message_keys WHERE pubkey = ? AND n = ?`, pubKey[:], n)
	return err
}

func (s *Store) ContainsPK(pubKey doubleratchet.Key) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM message_keys WHERE pubkey = ?)`, pubKey[:]).Scan(&exists)
	return exists, err
}

// Count returns the number of message keys stored under pubKey.
func (s *Store) Count(pubKey doubleratchet.Key) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM message_keys WHERE pubkey = ?`, pubKey[:]).Scan(&n)
	return n, err
}

func (s *Store) SaveSession(id []byte, state []byte) error {
	if len(id) == 0 {
		return fmt.Errorf("sqlstore: empty session id")
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO sessions (id, state) VALUES (?, ?)`, id, state)
	return err
}

func (s *Store) LoadSession(id []byte) ([]byte, error) {
	var state []byte
	err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, doubleratchet.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}
