// Package redis is a cache.Backend over Redis, used with redis:// and
// rediss:// connection strings. Each document is one string key holding the
// msgpack-encoded record:
//
//	da:cachr:{database}:{collection}:{document_id}
//
// A key holds one value, so Find returns at most one record.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
)

const keyPrefix = "da:cachr:"

// Compile-time interface checks.
var (
	_ cache.Backend    = (*Store)(nil)
	_ cache.Collection = (*Collection)(nil)
)

// Store is a Redis-backed cache store.
type Store struct {
	client   redis.UniversalClient
	database string
	owned    bool
}

// New wraps client. The caller owns the client lifecycle; Close does not
// close it.
func New(client redis.UniversalClient, database string) *Store {
	return &Store{client: client, database: database}
}

// Open connects to the Redis server at uri and pings it. The returned Store
// closes the client on Close.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrConfiguration, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("da/redis: ping: %w", err)
	}

	s := New(client, database)
	s.owned = true
	return s, nil
}

// Name implements cache.Backend.
func (s *Store) Name() string { return "redis" }

// Client returns the underlying Redis client.
func (s *Store) Client() redis.UniversalClient { return s.client }

// Collection implements cache.Backend. Redis is schemaless, so nothing is
// created.
func (s *Store) Collection(_ context.Context, name string) (cache.Collection, error) {
	return &Collection{
		client: s.client,
		name:   name,
		prefix: keyPrefix + s.database + ":" + name + ":",
	}, nil
}

// Ping implements cache.Backend.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("da/redis: ping: %w", err)
	}
	return nil
}

// Close implements cache.Backend.
func (s *Store) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Collection is one key namespace.
type Collection struct {
	client redis.UniversalClient
	name   string
	prefix string
}

// Key returns the Redis key for documentID.
func (c *Collection) Key(documentID string) string {
	return c.prefix + documentID
}

// Find implements cache.Collection.
func (c *Collection) Find(ctx context.Context, documentID string) ([]cache.Record, error) {
	raw, err := c.client.Get(ctx, c.Key(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []cache.Record{}, nil
		}
		return nil, fmt.Errorf("da/redis: get %s/%s: %w", c.name, documentID, err)
	}

	var rec cache.Record
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("da/redis: decode %s/%s: %w", c.name, documentID, err)
	}
	return []cache.Record{rec}, nil
}

// UpsertOne implements cache.Collection.
func (c *Collection) UpsertOne(ctx context.Context, rec cache.Record) error {
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("da/redis: encode %s/%s: %w", c.name, rec.DocumentID, err)
	}

	if err := c.client.Set(ctx, c.Key(rec.DocumentID), raw, 0).Err(); err != nil {
		return fmt.Errorf("da/redis: set %s/%s: %w", c.name, rec.DocumentID, err)
	}
	return nil
}
