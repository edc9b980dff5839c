package cache

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thecopy-and-thepaste/DA/internal/logging"
)

// upsertMu serializes upserts from every Cachr in the process.
//
//nolint:gochecknoglobals // process-wide write lock
var upsertMu sync.Mutex

// Cachr reads and writes documents in one collection.
type Cachr struct {
	conn       *Connection
	collection string
	coll       Collection
}

// Collection returns the collection name.
func (c *Cachr) Collection() string {
	return c.collection
}

// Upsert stores document under key, replacing any document already there.
// Upserts are serialized process-wide; the last writer wins.
func (c *Cachr) Upsert(ctx context.Context, key string, document map[string]any) error {
	if key == "" {
		return ErrInvalidKey
	}

	release, err := c.conn.acquire()
	if err != nil {
		return err
	}
	defer release()

	ctx, span := c.start(ctx, "da.cache.upsert", key)
	defer span.End()

	rec := NewRecord(key, document)

	upsertMu.Lock()
	err = c.coll.UpsertOne(ctx, rec)
	upsertMu.Unlock()

	if err != nil {
		c.fail(ctx, span, "upsert", key, err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "cache").
		Str("operation", "upsert").
		Str("collection", c.collection).
		Str("document_id", key).
		Msg("document cached")
	return nil
}

// Lookup returns the document stored under key. found is false when there is
// none. More than one stored document for key is ErrConsistencyViolation.
func (c *Cachr) Lookup(ctx context.Context, key string) (*Record, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}

	release, err := c.conn.acquire()
	if err != nil {
		return nil, false, err
	}
	defer release()

	ctx, span := c.start(ctx, "da.cache.lookup", key)
	defer span.End()

	recs, err := c.coll.Find(ctx, key)
	if err != nil {
		c.fail(ctx, span, "lookup", key, err)
		return nil, false, err
	}

	span.SetAttributes(attribute.Int("da.cache.matches", len(recs)))

	switch len(recs) {
	case 0:
		span.SetStatus(codes.Ok, "")
		return nil, false, nil
	case 1:
		span.SetStatus(codes.Ok, "")
		rec := recs[0]
		return &rec, true, nil
	default:
		err := fmt.Errorf("%w: collection %q, document %q, %d documents",
			ErrConsistencyViolation, c.collection, key, len(recs))
		c.fail(ctx, span, "lookup", key, err)
		return nil, false, err
	}
}

// Get is Lookup with a missing document reported as ErrNotCached.
func (c *Cachr) Get(ctx context.Context, key string) (*Record, error) {
	rec, found, err := c.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: collection %q, document %q", ErrNotCached, c.collection, key)
	}
	return rec, nil
}

func (c *Cachr) start(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return c.conn.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("da.cache.backend", c.conn.backend.Name()),
			attribute.String("da.cache.collection", c.collection),
			attribute.String("da.cache.document_id", key),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (c *Cachr) fail(ctx context.Context, span trace.Span, op, key string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logging.FromContext(ctx).Error().
		Ctx(ctx).
		Str("component", "cache").
		Str("operation", op).
		Str("backend", c.conn.backend.Name()).
		Str("collection", c.collection).
		Str("document_id", key).
		Err(err).
		Msg("cache operation failed")
}
