package cache

import (
	"context"
	"errors"
)

// Common cache errors.
var (
	ErrInvalidKey           = errors.New("document id cannot be empty")
	ErrInvalidCollection    = errors.New("invalid collection name")
	ErrConsistencyViolation = errors.New("more than one document stored for key")
	ErrConfiguration        = errors.New("cache store is not configured")
	ErrNotCached            = errors.New("document not cached")
	ErrClosed               = errors.New("cache connection is closed")
)

// Backend is a connected document store.
type Backend interface {
	// Name identifies the backend in logs and spans, e.g. "mongo".
	Name() string

	// Collection returns the named collection, creating whatever the store
	// needs for it (table, index, directory).
	Collection(ctx context.Context, name string) (Collection, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store handle.
	Close(ctx context.Context) error
}

// Collection holds documents keyed by document id.
type Collection interface {
	// Find returns every stored record whose DocumentID equals documentID.
	// Callers treat more than one as a consistency violation, so
	// implementations must not deduplicate.
	Find(ctx context.Context, documentID string) ([]Record, error)

	// UpsertOne replaces the record with rec.DocumentID, or inserts rec when
	// none exists.
	UpsertOne(ctx context.Context, rec Record) error
}

// Opener connects a Backend.
type Opener func(ctx context.Context) (Backend, error)
