// Package store persists the user-state aggregates in a local SQLite file.
// It is the Go equivalent of the single-key browser local storage the
// simulator is modeled on: whole-record JSON reads and writes under fixed
// keys, last writer wins, a corrupt or missing record silently degrades to
// defaults.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"scr-miner/internal/model"
)

// Record keys. KeyUserData holds the UserData aggregate, KeyUserAuth the
// credential/session record. Callers lock these keys around read-modify-write
// cycles.
const (
	KeyUserData = "user_data"
	KeyUserAuth = "user_auth"
)

// Store persists the aggregates in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens the SQLite store at path, creating the file and schema as
// needed.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS records (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{sqlDB: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	log.Info().Str("path", cleanPath).Msg("Storage opened")
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the persisted UserData record, or a fresh default record when
// nothing usable is stored. It never fails the caller: a missing or corrupt
// record is logged and replaced by defaults.
func (s *Store) Load(ctx context.Context) model.UserData {
	raw, err := s.get(ctx, KeyUserData)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Msg("Failed to read user data, falling back to defaults")
		}
		return model.DefaultUserData(s.now())
	}

	var data model.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Warn().Err(err).Msg("Stored user data is corrupt, falling back to defaults")
		return model.DefaultUserData(s.now())
	}
	return data
}

// Save stamps lastUpdated and writes the whole aggregate in a single upsert.
func (s *Store) Save(ctx context.Context, data model.UserData) error {
	data.LastUpdated = s.now().UnixMilli()
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal user data: %w", err)
	}
	return s.put(ctx, KeyUserData, raw)
}

// Reset overwrites persisted state with a fresh default record and returns
// it. The auth record is untouched.
func (s *Store) Reset(ctx context.Context) (model.UserData, error) {
	fresh := model.DefaultUserData(s.now())
	if err := s.Save(ctx, fresh); err != nil {
		return fresh, err
	}
	log.Info().Msg("User data reset to defaults")
	return fresh, nil
}

// LoadAuth returns the persisted auth record and whether one exists.
// A corrupt record is treated as absent.
func (s *Store) LoadAuth(ctx context.Context) (model.UserAuth, bool) {
	raw, err := s.get(ctx, KeyUserAuth)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Msg("Failed to read auth record")
		}
		return model.UserAuth{}, false
	}

	var auth model.UserAuth
	if err := json.Unmarshal(raw, &auth); err != nil {
		log.Warn().Err(err).Msg("Stored auth record is corrupt, treating as absent")
		return model.UserAuth{}, false
	}
	return auth, true
}

// SaveAuth writes the auth record.
func (s *Store) SaveAuth(ctx context.Context, auth model.UserAuth) error {
	raw, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}
	return s.put(ctx, KeyUserAuth, raw)
}

// DeleteAuth removes the auth record. Deleting an absent record is not an
// error.
func (s *Store) DeleteAuth(ctx context.Context) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, KeyUserAuth)
	if err != nil {
		return fmt.Errorf("delete auth record: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) put(ctx context.Context, key string, raw []byte) error {
	const query = `
		INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.sqlDB.ExecContext(ctx, query, key, raw, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	return nil
}
