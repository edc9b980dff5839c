package file_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/file"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")

	s, err := file.Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))
	assert.Equal(t, dir, s.Directory())

	coll, err := s.Collection(ctx, "taxa")
	require.NoError(t, err)

	t.Run("absent", func(t *testing.T) {
		found, err := coll.Find(ctx, "K")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("upsert then find", func(t *testing.T) {
		rec := cache.NewRecord("K", map[string]any{"name": "Quercus"})
		require.NoError(t, coll.UpsertOne(ctx, rec))

		found, err := coll.Find(ctx, "K")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Quercus", found[0].Document["name"])
		assert.True(t, rec.UpdatedAt.Equal(found[0].UpdatedAt))
	})

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("K", map[string]any{"name": "Pinus"})))

		found, err := coll.Find(ctx, "K")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, map[string]any{"name": "Pinus"}, found[0].Document)
	})

	t.Run("ids with separators do not collide", func(t *testing.T) {
		require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("a/b", map[string]any{"v": "slash"})))
		require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("a_b", map[string]any{"v": "underscore"})))
		require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("..", map[string]any{"v": "dots"})))

		for id, want := range map[string]string{"a/b": "slash", "a_b": "underscore", "..": "dots"} {
			found, err := coll.Find(ctx, id)
			require.NoError(t, err)
			require.Len(t, found, 1, id)
			assert.Equal(t, want, found[0].Document["v"])
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := coll.(*file.Collection).Count()
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("no temp files left", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(dir, "taxa"))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()))
		}
	})
}

func TestStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	s, err := file.Open(t.TempDir())
	require.NoError(t, err)
	coll, err := s.Collection(ctx, "taxa")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.Directory(), "taxa", "k.json"), []byte("{"), 0o600))

	_, err = coll.Find(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "da/file: unmarshal document")
}

func TestStore_CaseDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s, err := file.Open(t.TempDir())
	require.NoError(t, err)
	coll, err := s.Collection(ctx, "taxa")
	require.NoError(t, err)

	require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("A", map[string]any{"v": "upper"})))
	require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("a", map[string]any{"v": "lower"})))
	require.NoError(t, coll.UpsertOne(ctx, cache.NewRecord("^a", map[string]any{"v": "caret"})))

	entries, err := os.ReadDir(filepath.Join(s.Directory(), "taxa"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Len(t, names, 3)
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			assert.False(t, strings.EqualFold(names[i], names[j]), "%s and %s differ only by case", names[i], names[j])
		}
	}

	for id, want := range map[string]string{"A": "upper", "a": "lower", "^a": "caret"} {
		found, err := coll.Find(ctx, id)
		require.NoError(t, err)
		require.Len(t, found, 1, id)
		assert.Equal(t, want, found[0].Document["v"])
	}
}

func TestStore_ForeignDocumentIsMiss(t *testing.T) {
	ctx := context.Background()
	s, err := file.Open(t.TempDir())
	require.NoError(t, err)
	coll, err := s.Collection(ctx, "taxa")
	require.NoError(t, err)

	other := `{"document_id":"other","updated_at":"2026-01-02T03:04:05Z","document":{"v":1}}`
	require.NoError(t, os.WriteFile(filepath.Join(s.Directory(), "taxa", "k.json"), []byte(other), 0o600))

	found, err := coll.Find(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStore_CollectionDirectories(t *testing.T) {
	ctx := context.Background()
	s, err := file.Open(t.TempDir())
	require.NoError(t, err)

	upper, err := s.Collection(ctx, "Taxa")
	require.NoError(t, err)
	lower, err := s.Collection(ctx, "taxa")
	require.NoError(t, err)

	require.NoError(t, upper.UpsertOne(ctx, cache.NewRecord("k", map[string]any{"v": "upper"})))
	found, err := lower.Find(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestOpen_EmptyDirectory(t *testing.T) {
	_, err := file.Open("")
	assert.ErrorIs(t, err, file.ErrEmptyDirectory)
}
