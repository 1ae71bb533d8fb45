package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteBackend stores the document as one row of a key-value table.
type SQLiteBackend struct {
	db       *sql.DB
	key      string
	maxBytes int
}

// OpenSQLite opens or creates the SQLite database and applies migrations.
// maxBytes, when positive, caps the document size.
func OpenSQLite(path string, maxBytes int) (*SQLiteBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	b := &SQLiteBackend{db: db, key: DocumentKey, maxBytes: maxBytes}
	if err := b.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return b, nil
}

// Close closes the underlying database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Read implements Backend.
func (b *SQLiteBackend) Read() (string, bool, error) {
	var value string
	err := b.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, b.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", b.key, err)
	}
	return value, true, nil
}

// Write implements Backend. The upsert runs in a transaction so a failed
// write leaves the stored row unchanged.
func (b *SQLiteBackend) Write(doc string) (err error) {
	if b.maxBytes > 0 && len(doc) > b.maxBytes {
		return fmt.Errorf("document is %d bytes, quota is %d: %w", len(doc), b.maxBytes, ErrQuotaExceeded)
	}
	ctx := context.Background()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		b.key, doc, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return mapSQLiteErr(err)
	}
	if err = tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func mapSQLiteErr(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%v: %w", err, ErrQuotaExceeded)
	}
	return err
}
