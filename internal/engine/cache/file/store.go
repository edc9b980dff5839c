// Package file is a cache.Backend that keeps one JSON file per document under
// a directory, one subdirectory per collection. It is used with the
// file://<dir> connection string for local runs that need persistence without
// a database server.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
)

// cacheFileExtension is the file extension used for cached documents.
const cacheFileExtension = ".json"

// Compile-time interface checks.
var (
	_ cache.Backend    = (*Store)(nil)
	_ cache.Collection = (*Collection)(nil)
)

// ErrEmptyDirectory is returned by Open when no directory is given.
var ErrEmptyDirectory = errors.New("da/file: cache directory cannot be empty")

// Store is a directory of collections.
type Store struct {
	// directory is the cache root.
	directory string

	// mu protects concurrent access to file operations.
	mu sync.RWMutex
}

// Open returns a Store rooted at directory, creating it if needed.
func Open(directory string) (*Store, error) {
	if directory == "" {
		return nil, ErrEmptyDirectory
	}

	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("da/file: create cache directory: %w", err)
	}

	return &Store{directory: directory}, nil
}

// Name implements cache.Backend.
func (s *Store) Name() string { return "file" }

// Directory returns the cache root.
func (s *Store) Directory() string { return s.directory }

// Collection implements cache.Backend.
func (s *Store) Collection(_ context.Context, name string) (cache.Collection, error) {
	dir := filepath.Join(s.directory, fileName(name))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("da/file: create collection %s: %w", name, err)
	}
	return &Collection{store: s, directory: dir}, nil
}

// Ping implements cache.Backend.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.directory)
	if err != nil {
		return fmt.Errorf("da/file: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("da/file: %s is not a directory", s.directory)
	}
	return nil
}

// Close implements cache.Backend.
func (s *Store) Close(context.Context) error { return nil }

// Collection is one directory of documents.
type Collection struct {
	store     *Store
	directory string
}

// Find implements cache.Collection. A file path holds at most one document,
// so the result has zero or one records.
func (c *Collection) Find(_ context.Context, documentID string) ([]cache.Record, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	data, err := os.ReadFile(c.keyToFilePath(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return []cache.Record{}, nil
		}
		return nil, fmt.Errorf("da/file: read document: %w", err)
	}

	var rec cache.Record
	if unmarshalErr := json.Unmarshal(data, &rec); unmarshalErr != nil {
		return nil, fmt.Errorf("da/file: unmarshal document: %w", unmarshalErr)
	}
	if rec.DocumentID != documentID {
		return []cache.Record{}, nil
	}

	return []cache.Record{rec}, nil
}

// UpsertOne implements cache.Collection.
func (c *Collection) UpsertOne(_ context.Context, rec cache.Record) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("da/file: marshal document: %w", err)
	}

	filePath := c.keyToFilePath(rec.DocumentID)

	// Write to a temporary file first, then rename for atomicity
	tempPath := filePath + ".tmp"
	if writeErr := os.WriteFile(tempPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("da/file: write document: %w", writeErr)
	}

	if renameErr := os.Rename(tempPath, filePath); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("da/file: rename document: %w", renameErr)
	}

	return nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count() (int, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return 0, fmt.Errorf("da/file: read collection: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == cacheFileExtension {
			count++
		}
	}
	return count, nil
}

// keyToFilePath maps a document id to its file.
func (c *Collection) keyToFilePath(documentID string) string {
	return filepath.Join(c.directory, fileName(documentID)+cacheFileExtension)
}

// fileName encodes an id as a file name that stays distinct from every other
// id on case-insensitive file systems. The id is path-escaped, then each
// upper-case letter outside an escape is written as '^' and its lower-case
// form. A literal '^' is always escaped, so the mapping is injective.
func fileName(id string) string {
	escaped := strings.ReplaceAll(url.PathEscape(id), "\\", "%5C")

	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		ch := escaped[i]
		switch {
		case ch == '%' && i+2 < len(escaped):
			b.WriteString(escaped[i : i+3])
			i += 2
		case ch >= 'A' && ch <= 'Z':
			b.WriteByte('^')
			b.WriteByte(ch + ('a' - 'A'))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
