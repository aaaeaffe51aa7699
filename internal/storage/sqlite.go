package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// SQLiteStore keeps history and diaries as JSON columns keyed by (user, slot).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS slot_history (
		user_id INTEGER NOT NULL,
		slot INTEGER NOT NULL,
		history_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, slot)
	);
	CREATE TABLE IF NOT EXISTS slot_diary (
		user_id INTEGER NOT NULL,
		slot INTEGER NOT NULL,
		entries_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, slot)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) LoadHistory(ctx context.Context, userID int64, slot int) ([]schema.Message, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT history_json FROM slot_history WHERE user_id = ? AND slot = ?`, userID, slot,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load history %s: %w", slotKey(userID, slot), err)
	}
	var history []schema.Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, true, fmt.Errorf("decode history %s: %w", slotKey(userID, slot), err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveHistory(ctx context.Context, userID int64, slot int, history []schema.Message) error {
	if history == nil {
		history = []schema.Message{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO slot_history (user_id, slot, history_json, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id, slot) DO UPDATE SET
		history_json = excluded.history_json,
		updated_at = excluded.updated_at`,
		userID, slot, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save history %s: %w", slotKey(userID, slot), err)
	}
	return nil
}

func (s *SQLiteStore) LoadDiary(ctx context.Context, userID int64, slot int) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT entries_json FROM slot_diary WHERE user_id = ? AND slot = ?`, userID, slot,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load diary %s: %w", slotKey(userID, slot), err)
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode diary %s: %w", slotKey(userID, slot), err)
	}
	return entries, nil
}

func (s *SQLiteStore) SaveDiary(ctx context.Context, userID int64, slot int, entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal diary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO slot_diary (user_id, slot, entries_json, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id, slot) DO UPDATE SET
		entries_json = excluded.entries_json,
		updated_at = excluded.updated_at`,
		userID, slot, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save diary %s: %w", slotKey(userID, slot), err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSlot(ctx context.Context, userID int64, slot int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM slot_history WHERE user_id = ? AND slot = ?`,
		`DELETE FROM slot_diary WHERE user_id = ? AND slot = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID, slot); err != nil {
			return fmt.Errorf("delete slot %s: %w", slotKey(userID, slot), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
