package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/cleaning"
	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/docstore/memory"
	"github.com/ekaya-inc/mongofilm/pkg/metrics"
	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/query"
	"github.com/ekaya-inc/mongofilm/pkg/retry"
	"github.com/ekaya-inc/mongofilm/pkg/testhelpers"
)

// cleanDataset runs the cleaning pipeline over ds and returns the clean dir.
func cleanDataset(t *testing.T, ds testhelpers.Dataset) string {
	t.Helper()
	data := config.DataConfig{RawDir: t.TempDir(), CleanDir: t.TempDir()}
	ds.Write(t, data.RawDir)
	_, err := cleaning.NewPipeline(data, nil, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	return data.CleanDir
}

func fastRetry() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestLoader_Run(t *testing.T) {
	ctx := context.Background()
	dir := cleanDataset(t, testhelpers.SmallDataset())
	store := memory.New(zap.NewNop())
	m := metrics.New()

	report, err := New(store, config.LoaderConfig{BatchSize: 2, ChunkSize: 2}, m, zap.NewNop()).Run(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.Movies)
	assert.Equal(t, int64(3), report.Ratings)
	assert.Equal(t, int64(3), report.RatingsWithTMDB)
	assert.Equal(t, 100.0, report.Coverage)
	assert.Equal(t, 0, report.SkippedRows)
	assert.Empty(t, report.DecodeFailures)
	assert.Equal(t, "862 Toy Story", report.Sample)
	assert.True(t, store.Indexed())

	movies, err := docstore.CollectMovies(ctx, store)
	require.NoError(t, err)
	require.Len(t, movies, 3)

	heat := movies[1]
	assert.Equal(t, int64(949), heat.TMDBID)
	assert.Equal(t, []string{"Action", "Crime", "Drama", "Thriller"}, heat.GenreNames())
	require.Len(t, heat.Cast, 2)
	assert.Equal(t, "Amy Brenneman", heat.Cast[1].Name)
	require.Len(t, heat.Directors(), 1)
	assert.Equal(t, "Michael Mann", heat.Directors()[0].Name)
	assert.Equal(t, []models.Keyword{{ID: 642, Name: "robbery"}}, heat.Keywords)
	require.NotNil(t, heat.Tagline)
	assert.Equal(t, "A Los Angeles crime saga", *heat.Tagline)

	toyStory := movies[0]
	require.NotNil(t, toyStory.BelongsToCollection)
	assert.Equal(t, int64(10194), toyStory.BelongsToCollection.ID)
}

func TestLoader_RunReplacesPreviousLoad(t *testing.T) {
	ctx := context.Background()
	dir := cleanDataset(t, testhelpers.SmallDataset())
	store := memory.New(zap.NewNop())
	l := New(store, config.LoaderConfig{}, nil, zap.NewNop())

	_, err := l.Run(ctx, dir)
	require.NoError(t, err)
	report, err := l.Run(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.Movies)
	assert.Equal(t, int64(3), report.Ratings)
}

func TestLoader_MissingCleanFile(t *testing.T) {
	_, err := New(memory.New(zap.NewNop()), config.LoaderConfig{}, nil, zap.NewNop()).Run(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, apperrors.ErrSourceUnreadable)
}

// flakyStore fails the first InsertMovies call with a transient error.
type flakyStore struct {
	docstore.Store
	calls atomic.Int32
}

func (s *flakyStore) InsertMovies(ctx context.Context, docs []models.MovieDocument) error {
	if s.calls.Add(1) == 1 {
		return retry.Transient(errors.New("connection reset"))
	}
	return s.Store.InsertMovies(ctx, docs)
}

func TestLoader_RetriesTransientWrites(t *testing.T) {
	dir := cleanDataset(t, testhelpers.SmallDataset())
	store := &flakyStore{Store: memory.New(zap.NewNop())}

	report, err := New(store, config.LoaderConfig{}, nil, zap.NewNop()).
		WithRetry(fastRetry()).
		Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Movies)
	assert.Equal(t, int32(2), store.calls.Load())
}

// duplicatingStore always reports a duplicate key for ratings.
type duplicatingStore struct {
	docstore.Store
	calls atomic.Int32
}

func (s *duplicatingStore) InsertRatings(ctx context.Context, docs []models.RatingDocument) error {
	s.calls.Add(1)
	return docstore.ErrDuplicateKey
}

func TestLoader_DuplicateKeyIsNotRetried(t *testing.T) {
	dir := cleanDataset(t, testhelpers.SmallDataset())
	store := &duplicatingStore{Store: memory.New(zap.NewNop())}

	_, err := New(store, config.LoaderConfig{}, nil, zap.NewNop()).
		WithRetry(fastRetry()).
		Run(context.Background(), dir)
	assert.ErrorIs(t, err, docstore.ErrDuplicateKey)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestLoadThenQuery_UserStats(t *testing.T) {
	ctx := context.Background()
	dir := cleanDataset(t, testhelpers.SmallDataset())
	store := memory.New(zap.NewNop())

	_, err := New(store, config.LoaderConfig{}, nil, zap.NewNop()).Run(ctx, dir)
	require.NoError(t, err)

	cfg := config.DefaultQueryConfig()
	cfg.UserStats.MinRatingsForVariance = 1
	engine, err := query.NewEngine(store, cfg, nil, zap.NewNop())
	require.NoError(t, err)

	boards, err := engine.UserStats(ctx)
	require.NoError(t, err)
	require.Len(t, boards.GenreDiverse, 2)

	user1 := boards.GenreDiverse[0]
	assert.Equal(t, int64(1), user1.UserID)
	assert.Equal(t, int64(2), user1.RatingCount)
	assert.Equal(t, []string{"Adventure", "Animation", "Comedy", "Family", "Fantasy"}, user1.GenresAll)
	require.NotNil(t, user1.PopulationVariance)
	assert.InDelta(t, 1.0, *user1.PopulationVariance, 1e-9)

	user2 := boards.GenreDiverse[1]
	assert.Equal(t, int64(2), user2.UserID)
	assert.Equal(t, 4, user2.DistinctGenreCount)
	require.NotNil(t, user2.PopulationVariance)
	assert.InDelta(t, 0.0, *user2.PopulationVariance, 1e-9)

	require.Len(t, boards.Variance, 2)
	assert.Equal(t, int64(1), boards.Variance[0].UserID)
}
