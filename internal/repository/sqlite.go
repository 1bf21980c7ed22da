// Package repository persists settings and dictionary entries in a
// local SQLite file. Sessions deliberately do not live here; they are
// in-memory or in Redis and need not survive a restart.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS dictionary (
	term           TEXT NOT NULL,
	category       TEXT NOT NULL,
	case_sensitive INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (term, case_sensitive)
);
`

// DB wraps the SQLite handle behind the two tables the gateway owns.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and ensures the
// schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes; one connection avoids
	// SQLITE_BUSY churn under concurrent settings updates.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// ── settings ─────────────────────────────────────────────────────────────

// LoadSettings returns every stored setting as raw JSON keyed by
// setting name.
func (d *DB) LoadSettings(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}

// SaveSetting upserts one setting value (already JSON-encoded).
func (d *DB) SaveSetting(ctx context.Context, key string, value json.RawMessage) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// ── dictionary ───────────────────────────────────────────────────────────

// ListDictionary returns all entries ordered by term.
func (d *DB) ListDictionary(ctx context.Context) ([]detector.Entry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT term, category, case_sensitive FROM dictionary ORDER BY term`)
	if err != nil {
		return nil, fmt.Errorf("list dictionary: %w", err)
	}
	defer rows.Close()

	var out []detector.Entry
	for rows.Next() {
		var e detector.Entry
		var cs int
		if err := rows.Scan(&e.Term, &e.Category, &cs); err != nil {
			return nil, fmt.Errorf("scan dictionary entry: %w", err)
		}
		e.CaseSensitive = cs != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddDictionaryEntry upserts one term. Case-insensitive terms are
// deduplicated by their folded form through the matcher, so the table
// may hold the operator's original casing.
func (d *DB) AddDictionaryEntry(ctx context.Context, e detector.Entry) error {
	cs := 0
	if e.CaseSensitive {
		cs = 1
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO dictionary (term, category, case_sensitive) VALUES (?, ?, ?)
		ON CONFLICT(term, case_sensitive) DO UPDATE SET category = excluded.category`,
		e.Term, e.Category, cs)
	if err != nil {
		return fmt.Errorf("add dictionary entry %q: %w", e.Term, err)
	}
	return nil
}

// RemoveDictionaryEntry deletes a term in both case modes, reporting
// whether anything was removed.
func (d *DB) RemoveDictionaryEntry(ctx context.Context, term string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM dictionary WHERE term = ?`, term)
	if err != nil {
		return false, fmt.Errorf("remove dictionary entry %q: %w", term, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
