package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    product_id TEXT NOT NULL DEFAULT '',
    variant_id TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    properties TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
CREATE INDEX IF NOT EXISTS idx_events_product ON events(product_id);

CREATE TABLE IF NOT EXISTS subscriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    phone TEXT NOT NULL,
    marketing_opt_in INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL,
    error TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_outcome ON subscriptions(outcome);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// Load reads a setting as raw bytes. A missing key is not an error.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.GetSetting(ctx, key)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Save writes raw bytes as a setting.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	return s.SetSetting(ctx, key, string(data))
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e *Event) error {
	var propsJSON []byte
	if len(e.Properties) > 0 {
		var err error
		propsJSON, err = json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties: %w", err)
		}
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (name, session_id, product_id, variant_id, context, properties, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.SessionID, e.ProductID, e.VariantID, e.Context, nullableString(propsJSON), now,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = time.Unix(now, 0)
	return nil
}

func (s *SQLiteStore) CountEvents(ctx context.Context) ([]EventCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, COUNT(*) FROM events GROUP BY name ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	var counts []EventCount
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetEvents returns the events recorded for a product, newest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, productID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, session_id, product_id, variant_id, context, properties, created_at
		 FROM events WHERE product_id = ? ORDER BY created_at DESC, id DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var propsJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Name, &e.SessionID, &e.ProductID, &e.VariantID, &e.Context, &propsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if propsJSON.Valid && propsJSON.String != "" {
			if err := json.Unmarshal([]byte(propsJSON.String), &e.Properties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
			}
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) RecordSubscription(ctx context.Context, sub *Subscription) error {
	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (product_id, variant_id, phone, marketing_opt_in, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ProductID, sub.VariantID, sub.Phone, sub.MarketingOptIn, string(sub.Outcome),
		nullableString([]byte(sub.Error)), now,
	)
	if err != nil {
		return fmt.Errorf("failed to record subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt = time.Unix(now, 0)
	return nil
}

// CountSubscriptions counts relayed sign-ups; an empty outcome counts all.
func (s *SQLiteStore) CountSubscriptions(ctx context.Context, outcome SubscriptionOutcome) (int, error) {
	var n int
	var err error
	if outcome == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE outcome = ?`, string(outcome)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
