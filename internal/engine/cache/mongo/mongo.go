// Package mongo is a cache.Backend over MongoDB, used with mongodb:// and
// mongodb+srv:// connection strings. Each collection gets a unique index on
// document_id.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
)

const fieldDocumentID = "document_id"

// Compile-time interface checks.
var (
	_ cache.Backend    = (*Store)(nil)
	_ cache.Collection = (*Collection)(nil)
)

// Store is a connected MongoDB database.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
}

// Open connects to uri and pings the primary.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongod.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrConfiguration, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("da/mongo: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Name implements cache.Backend.
func (s *Store) Name() string { return "mongo" }

// Database returns the underlying database handle.
func (s *Store) Database() *mongod.Database { return s.db }

// Collection implements cache.Backend.
func (s *Store) Collection(ctx context.Context, name string) (cache.Collection, error) {
	coll := s.db.Collection(name)

	_, err := coll.Indexes().CreateOne(ctx, mongod.IndexModel{
		Keys:    bson.D{{Key: fieldDocumentID, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("da/mongo: index %s: %w", name, err)
	}

	return &Collection{coll: coll}, nil
}

// Ping implements cache.Backend.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("da/mongo: ping: %w", err)
	}
	return nil
}

// Close implements cache.Backend.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection is one MongoDB collection.
type Collection struct {
	coll *mongod.Collection
}

// Find implements cache.Collection.
func (c *Collection) Find(ctx context.Context, documentID string) ([]cache.Record, error) {
	cursor, err := c.coll.Find(ctx, bson.M{fieldDocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("da/mongo: find %s/%s: %w", c.coll.Name(), documentID, err)
	}

	out := []cache.Record{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("da/mongo: decode %s/%s: %w", c.coll.Name(), documentID, err)
	}
	return out, nil
}

// UpsertOne implements cache.Collection. The stored fields are replaced with
// those of rec.
func (c *Collection) UpsertOne(ctx context.Context, rec cache.Record) error {
	_, err := c.coll.UpdateOne(ctx,
		bson.M{fieldDocumentID: rec.DocumentID},
		bson.M{"$set": rec},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("da/mongo: upsert %s/%s: %w", c.coll.Name(), rec.DocumentID, err)
	}
	return nil
}
