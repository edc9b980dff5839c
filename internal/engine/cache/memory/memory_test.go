package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/memory"
)

func TestCollection(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	coll, err := b.Collection(ctx, "taxa")
	require.NoError(t, err)
	assert.Same(t, b.Get("taxa"), coll)

	require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("K", map[string]any{"v": 1})))
	require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("K", map[string]any{"v": 2})))
	assert.Equal(t, 1, b.Get("taxa").Count("K"))

	found, err := coll.Find(ctx, "K")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].Document["v"])

	// returned records do not alias storage
	found[0].Document["v"] = 99
	again, err := coll.Find(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, 2, again[0].Document["v"])
}

func TestCollection_InsertKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	c := b.Get("events")

	c.Insert(cache.NewRecord("dup", nil), cache.NewRecord("dup", nil), cache.NewRecord("other", nil))

	found, err := c.Find(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, []string{"dup", "other"}, c.IDs())

	// upsert touches only the first stored record
	require.NoError(t, c.UpsertOne(ctx, cache.NewRecord("dup", map[string]any{"v": 1})))
	assert.Equal(t, 2, c.Count("dup"))
}
