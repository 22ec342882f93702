package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/bassista/go_datastore/internal/record"
)

const (
	backendSQLite = "sqlite"

	// sqliteBusyTimeoutMs bounds waits on a locked database.
	sqliteBusyTimeoutMs = 5000
	sqliteDirPerm       = 0o750
	sqlitePingTimeout   = 5 * time.Second
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id   TEXT PRIMARY KEY,
	body TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`

// SQLiteRepository stores one JSON row per record.
type SQLiteRepository[ID comparable, S record.Identifiable[ID]] struct {
	db        *sql.DB
	validator *validator.Validate
}

// NewSQLiteRepository opens the database at path in WAL mode with a single
// connection, creating the schema if needed. ":memory:" is accepted.
func NewSQLiteRepository[ID comparable, S record.Identifiable[ID]](path string) (*SQLiteRepository[ID, S], error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	connStr := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), sqliteDirPerm); err != nil {
			return nil, storeErr(backendSQLite, "open", fmt.Errorf("creating database directory: %w", err))
		}
		connStr = fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, sqliteBusyTimeoutMs)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, storeErr(backendSQLite, "open", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), sqlitePingTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, storeErr(backendSQLite, "open", fmt.Errorf("creating schema: %w", err))
	}

	return NewSQLiteRepositoryFromDB[ID, S](db), nil
}

// NewSQLiteRepositoryFromDB wraps an open database that already has the schema.
func NewSQLiteRepositoryFromDB[ID comparable, S record.Identifiable[ID]](db *sql.DB) *SQLiteRepository[ID, S] {
	return &SQLiteRepository[ID, S]{db: db, validator: validator.New()}
}

// Load reads every row ordered by id.
func (r *SQLiteRepository[ID, S]) Load(ctx context.Context) (*Document[S], error) {
	doc := &Document[S]{}

	err := r.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'lastUpdate'").Scan(&doc.Metadata.LastUpdate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr(backendSQLite, "load", fmt.Errorf("reading metadata: %w", err))
	}

	rows, err := r.db.QueryContext(ctx, "SELECT id, body FROM records ORDER BY id")
	if err != nil {
		return nil, storeErr(backendSQLite, "load", fmt.Errorf("querying records: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, storeErr(backendSQLite, "load", fmt.Errorf("scanning record: %w", err))
		}
		var s S
		if err := json.Unmarshal([]byte(body), &s); err != nil {
			return nil, storeErr(backendSQLite, "load", fmt.Errorf("decode record %q: %w", id, err))
		}
		doc.Records = append(doc.Records, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(backendSQLite, "load", fmt.Errorf("iterating records: %w", err))
	}

	doc.ApplyDefaults()
	if err := r.validator.Struct(doc); err != nil {
		return nil, storeErr(backendSQLite, "load", fmt.Errorf("validate records: %w", err))
	}
	return doc, nil
}

// Save replaces every row in one transaction.
func (r *SQLiteRepository[ID, S]) Save(ctx context.Context, doc *Document[S]) error {
	if doc == nil {
		return storeErr(backendSQLite, "save", errors.New("document is nil"))
	}
	if err := r.validator.Struct(doc); err != nil {
		return storeErr(backendSQLite, "save", fmt.Errorf("validate before save: %w", err))
	}
	return storeErr(backendSQLite, "save", r.save(ctx, doc))
}

func (r *SQLiteRepository[ID, S]) save(ctx context.Context, doc *Document[S]) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO records (id, body) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range doc.Records {
		body, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode record %v: %w", s.RecordID(), err)
		}
		if _, err := stmt.ExecContext(ctx, record.Key(s.RecordID()), string(body)); err != nil {
			return fmt.Errorf("inserting record %v: %w", s.RecordID(), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('lastUpdate', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		doc.Metadata.LastUpdate,
	); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	return tx.Commit()
}

// Close closes the database connection.
func (r *SQLiteRepository[ID, S]) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
