// Package sqlite is a cache.Backend over a SQLite database file, used with the
// sqlite://<path> connection string. Each collection is a table named
// cachr_<collection> holding the document as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite" // registers the "sqlite" database/sql driver

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/internal/logging"
)

// Compile-time interface checks.
var (
	_ cache.Backend    = (*Store)(nil)
	_ cache.Collection = (*Collection)(nil)
)

// Store is an open SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", cache.ErrConfiguration)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("da/sqlite: open %q: %w", path, err)
	}
	// every ":memory:" connection is a separate database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("da/sqlite: open %q: %w", path, err)
	}
	if path != ":memory:" {
		enableWAL(ctx, db, path)
	}

	return &Store{db: db, path: path}, nil
}

// enableWAL switches a file database to write-ahead logging. A database that
// stays in another mode still works, so failure is only logged.
func enableWAL(ctx context.Context, db *sql.DB, path string) {
	log := logging.FromContext(ctx).With().
		Str("component", "cache").
		Str("backend", "sqlite").
		Str("path", path).
		Logger()

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("could not enable WAL journal mode")
		return
	}
	log.Debug().Ctx(ctx).Str("journal_mode", mode).Msg("journal mode set")
}

// Name implements cache.Backend.
func (s *Store) Name() string { return "sqlite" }

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Collection implements cache.Backend. The table is created on first use.
// document_id is indexed but not unique; uniqueness is kept by UpsertOne.
func (s *Store) Collection(ctx context.Context, name string) (cache.Collection, error) {
	table := quoteIdent("cachr_" + name)
	index := quoteIdent("idx_cachr_" + name + "_document_id")

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			document_id TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			document    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + index + ` ON ` + table + ` (document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("da/sqlite: create collection %s: %w", name, err)
		}
	}

	return &Collection{db: s.db, name: name, table: table}, nil
}

// Ping implements cache.Backend.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("da/sqlite: %w", err)
	}
	return nil
}

// Close implements cache.Backend.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// Collection is one table.
type Collection struct {
	db    *sql.DB
	name  string
	table string
}

// Find implements cache.Collection.
func (c *Collection) Find(ctx context.Context, documentID string) ([]cache.Record, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT updated_at, document FROM `+c.table+` WHERE document_id = ? ORDER BY rowid`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("da/sqlite: find %s/%s: %w", c.name, documentID, err)
	}
	defer rows.Close()

	out := []cache.Record{}
	for rows.Next() {
		var updatedAt, document string
		if err := rows.Scan(&updatedAt, &document); err != nil {
			return nil, fmt.Errorf("da/sqlite: scan %s/%s: %w", c.name, documentID, err)
		}
		rec, err := decode(documentID, updatedAt, document)
		if err != nil {
			return nil, fmt.Errorf("da/sqlite: decode %s/%s: %w", c.name, documentID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("da/sqlite: find %s/%s: %w", c.name, documentID, err)
	}

	return out, nil
}

// UpsertOne implements cache.Collection. It updates the first row for the id
// or inserts one, inside a transaction.
func (c *Collection) UpsertOne(ctx context.Context, rec cache.Record) (err error) {
	updatedAt, document, err := encode(rec)
	if err != nil {
		return fmt.Errorf("da/sqlite: encode %s/%s: %w", c.name, rec.DocumentID, err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("da/sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE `+c.table+` SET updated_at = ?, document = ?
		 WHERE rowid = (SELECT rowid FROM `+c.table+` WHERE document_id = ? ORDER BY rowid LIMIT 1)`,
		updatedAt, document, rec.DocumentID)
	if err != nil {
		return fmt.Errorf("da/sqlite: update %s/%s: %w", c.name, rec.DocumentID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("da/sqlite: update %s/%s: %w", c.name, rec.DocumentID, err)
	}
	if n == 0 {
		if err = c.insert(ctx, tx, rec.DocumentID, updatedAt, document); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("da/sqlite: commit %s/%s: %w", c.name, rec.DocumentID, err)
	}
	return nil
}

// Insert adds a row without checking for an existing one. It bypasses the
// one-document-per-key rule and exists to reproduce tables written by other
// tools.
func (c *Collection) Insert(ctx context.Context, rec cache.Record) error {
	updatedAt, document, err := encode(rec)
	if err != nil {
		return fmt.Errorf("da/sqlite: encode %s/%s: %w", c.name, rec.DocumentID, err)
	}
	return c.insert(ctx, c.db, rec.DocumentID, updatedAt, document)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (c *Collection) insert(ctx context.Context, db execer, documentID, updatedAt, document string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+c.table+` (document_id, updated_at, document) VALUES (?, ?, ?)`,
		documentID, updatedAt, document)
	if err != nil {
		return fmt.Errorf("da/sqlite: insert %s/%s: %w", c.name, documentID, err)
	}
	return nil
}

func encode(rec cache.Record) (string, string, error) {
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return "", "", err
	}
	return rec.UpdatedAt.UTC().Format(time.RFC3339Nano), string(doc), nil
}

func decode(documentID, updatedAt, document string) (cache.Record, error) {
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return cache.Record{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return cache.Record{}, err
	}

	return cache.Record{DocumentID: documentID, UpdatedAt: ts, Document: doc}, nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
