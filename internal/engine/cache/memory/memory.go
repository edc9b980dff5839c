// Package memory is an in-process cache.Backend. It is used with the
// memory:// connection string and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
)

// Compile-time interface checks.
var (
	_ cache.Backend    = (*Backend)(nil)
	_ cache.Collection = (*Collection)(nil)
)

// Backend keeps collections in maps. Collections with the same name share
// storage for the lifetime of the Backend.
type Backend struct {
	mu    sync.Mutex
	colls map[string]*Collection
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{colls: make(map[string]*Collection)}
}

// Name implements cache.Backend.
func (b *Backend) Name() string { return "memory" }

// Collection implements cache.Backend.
func (b *Backend) Collection(_ context.Context, name string) (cache.Collection, error) {
	return b.Get(name), nil
}

// Get returns the named collection with its concrete type.
func (b *Backend) Get(name string) *Collection {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.colls[name]
	if !ok {
		c = &Collection{docs: make(map[string][]cache.Record)}
		b.colls[name] = c
	}
	return c
}

// Ping implements cache.Backend.
func (b *Backend) Ping(context.Context) error { return nil }

// Close implements cache.Backend. Stored documents are kept.
func (b *Backend) Close(context.Context) error { return nil }

// Collection is one map of document id to stored records.
type Collection struct {
	mu   sync.RWMutex
	docs map[string][]cache.Record
}

// Find implements cache.Collection.
func (c *Collection) Find(_ context.Context, documentID string) ([]cache.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored := c.docs[documentID]
	out := make([]cache.Record, 0, len(stored))
	for _, rec := range stored {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// UpsertOne implements cache.Collection. Only the first stored record for the
// id is replaced.
func (c *Collection) UpsertOne(_ context.Context, rec cache.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.docs[rec.DocumentID]
	if len(stored) == 0 {
		c.docs[rec.DocumentID] = []cache.Record{rec.Clone()}
		return nil
	}
	stored[0] = rec.Clone()
	return nil
}

// Insert adds records without checking for existing ones. It bypasses the
// one-document-per-key rule and exists to reproduce stores written by other
// tools.
func (c *Collection) Insert(recs ...cache.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range recs {
		c.docs[rec.DocumentID] = append(c.docs[rec.DocumentID], rec.Clone())
	}
}

// Count returns the number of stored records for documentID.
func (c *Collection) Count(documentID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.docs[documentID])
}

// IDs returns the stored document ids in sorted order.
func (c *Collection) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
