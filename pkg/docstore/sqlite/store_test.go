package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/docstore/storetest"
	"github.com/ekaya-inc/mongofilm/pkg/models"
)

func openFileStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mongofilm.db")
	s, err := New(context.Background(), &Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStoreContract_File(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return openFileStore(t)
	})
}

func TestStoreContract_Memory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		s, err := New(context.Background(), &Config{Path: MemoryPath}, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	})
}

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{"path": "/var/lib/mongofilm.db"})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mongofilm.db", cfg.Path)
	assert.Equal(t, 500, cfg.InsertBatchSize)

	_, err = FromMap(map[string]any{})
	assert.EqualError(t, err, "path is required")

	_, err = FromMap(map[string]any{"path": 42})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, MemoryPath, dsn(MemoryPath))
	assert.Equal(t, "a.db?_busy_timeout=5000&_journal_mode=WAL", dsn("a.db"))
	assert.Equal(t, "a.db?mode=ro", dsn("a.db?mode=ro"))
}

func TestInsertBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openFileStore(t)

	require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{storetest.Rating(1, 1, 3.0, 862)}))

	// The second row of this batch collides; the first must not be kept.
	err := s.InsertRatings(ctx, []models.RatingDocument{
		storetest.Rating(2, 1, 4.0, 862),
		storetest.Rating(1, 1, 5.0, 862),
	})
	require.ErrorIs(t, err, docstore.ErrDuplicateKey)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Ratings)
}

func TestData_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mongofilm.db")

	s, err := New(ctx, &Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{storetest.Movie(862, "ToyStory")}))
	require.NoError(t, s.Close(ctx))

	reopened, err := New(ctx, &Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close(ctx)

	movies, err := docstore.CollectMovies(ctx, reopened)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "ToyStory", movies[0].Title)
}

func TestEnsureIndexes_CreatesRatingIndexes(t *testing.T) {
	ctx := context.Background()
	s := openFileStore(t)
	require.NoError(t, s.EnsureIndexes(ctx))

	for _, idx := range ratingIndexes {
		assert.True(t, s.db.Migrator().HasIndex(&ratingRow{}, idx.name), idx.name)
	}

	require.NoError(t, s.Reset(ctx))
	assert.False(t, s.db.Migrator().HasIndex(&ratingRow{}, ratingIndexes[0].name))
}

func TestRegistryOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	s, err := docstore.Open(context.Background(), "sqlite", map[string]any{"path": path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
}
