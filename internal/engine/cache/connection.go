package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/thecopy-and-thepaste/DA/internal/logging"
)

// tracerName is the instrumentation scope name for cache tracing.
const tracerName = "github.com/thecopy-and-thepaste/DA/internal/engine/cache"

//nolint:gochecknoglobals // compiled once
var collectionName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Connection owns one Backend handle and hands out Cachr values over it.
type Connection struct {
	backend Backend
	tracer  trace.Tracer

	// ops is held shared by store calls and exclusively by Close.
	ops sync.RWMutex

	mu     sync.Mutex
	closed bool
	colls  map[string]Collection
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithTracer sets the tracer used for cache spans.
func WithTracer(t trace.Tracer) ConnectionOption {
	return func(c *Connection) {
		c.tracer = t
	}
}

// NewConnection wraps backend in a Connection of its own, separate from the
// shared one. Most callers want Shared.
func NewConnection(backend Backend, opts ...ConnectionOption) *Connection {
	c := &Connection{
		backend: backend,
		colls:   make(map[string]Collection),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Backend returns the underlying store.
func (c *Connection) Backend() Backend {
	return c.backend
}

// Cachr returns a cache over the named collection. Collection names may only
// contain letters, digits, '_', '.' and '-'.
func (c *Connection) Cachr(ctx context.Context, collection string) (*Cachr, error) {
	if !collectionName.MatchString(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	coll, ok := c.colls[collection]
	if !ok {
		var err error
		coll, err = c.backend.Collection(ctx, collection)
		if err != nil {
			logging.FromContext(ctx).Error().
				Ctx(ctx).
				Str("component", "cache").
				Str("operation", "collection").
				Str("backend", c.backend.Name()).
				Str("collection", collection).
				Err(err).
				Msg("failed to open collection")
			return nil, err
		}
		c.colls[collection] = coll
	}

	return &Cachr{
		conn:       c,
		collection: collection,
		coll:       coll,
	}, nil
}

// Ping checks that the store is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()
	return c.backend.Ping(ctx)
}

// acquire marks a store call in flight. It fails with ErrClosed once Close has
// run.
func (c *Connection) acquire() (func(), error) {
	c.ops.RLock()
	if c.closed {
		c.ops.RUnlock()
		return nil, ErrClosed
	}
	return c.ops.RUnlock, nil
}

// Close closes the backend after calls in flight finish. Further calls through
// the Connection or any Cachr from it return ErrClosed.
func (c *Connection) Close(ctx context.Context) error {
	c.ops.Lock()
	defer c.ops.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	clear(c.colls)
	return c.backend.Close(ctx)
}

//nolint:gochecknoglobals // one logical connection per process
var shared struct {
	mu   sync.Mutex
	conn *Connection
}

// Shared returns the process-wide Connection, calling open the first time
// only. Every Cachr obtained through it shares one backend handle whatever
// its collection. A failed open is not remembered; the next call tries again.
func Shared(ctx context.Context, open Opener, opts ...ConnectionOption) (*Connection, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.conn != nil {
		return shared.conn, nil
	}

	backend, err := open(ctx)
	if err != nil {
		return nil, err
	}

	shared.conn = NewConnection(backend, opts...)
	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "cache").
		Str("backend", backend.Name()).
		Msg("shared cache connection opened")

	return shared.conn, nil
}

// ResetShared closes and forgets the process-wide Connection, if any.
func ResetShared(ctx context.Context) error {
	shared.mu.Lock()
	conn := shared.conn
	shared.conn = nil
	shared.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(ctx)
}

// New returns a Cachr for collection over the shared Connection.
func New(ctx context.Context, open Opener, collection string) (*Cachr, error) {
	conn, err := Shared(ctx, open)
	if err != nil {
		return nil, err
	}
	return conn.Cachr(ctx, collection)
}
