package cleaning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
	"github.com/ekaya-inc/mongofilm/pkg/testhelpers"
)

func newTestPipeline(t *testing.T, ds testhelpers.Dataset) (*Pipeline, config.DataConfig) {
	t.Helper()
	data := config.DataConfig{
		RawDir:   t.TempDir(),
		CleanDir: t.TempDir(),
	}
	ds.Write(t, data.RawDir)
	return NewPipeline(data, nil, zap.NewNop()), data
}

func TestPipeline_Run(t *testing.T) {
	p, data := newTestPipeline(t, testhelpers.SmallDataset())

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	want := map[string]int{Movies: 3, Credits: 3, Keywords: 3, Ratings: 3, Links: 3}
	for name, n := range want {
		assert.Equal(t, n, report.Tables[name].Written, name)

		clean, err := tabular.ReadCSV(context.Background(), name, filepath.Join(data.CleanDir, Schemas[name].CleanFile))
		require.NoError(t, err)
		assert.Equal(t, n, clean.Len(), name)
	}
	assert.Equal(t, 5, report.Tables[Ratings].Read)

	ratings, err := tabular.ReadCSV(context.Background(), Ratings, filepath.Join(data.CleanDir, "ratings.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "6"}, ratings.MustColumn("movieId"))
	assert.Equal(t, testhelpers.RatingsHeader, ratings.Header())

	movies, err := tabular.ReadCSV(context.Background(), Movies, filepath.Join(data.CleanDir, "movies.csv"))
	require.NoError(t, err)
	assert.Equal(t, testhelpers.MoviesHeader, movies.Header())
	assert.Equal(t, []string{"false", "false", "false"}, movies.MustColumn("adult"))
	// Nullable columns stay null.
	assert.True(t, movies.IsNull(0, "tagline"))
	assert.Equal(t, "A Los Angeles crime saga", movies.Value(2, "tagline"))
}

func TestPipeline_RunIsIdempotent(t *testing.T) {
	ds := testhelpers.SmallDataset()
	ds.Movies = append(ds.Movies,
		testhelpers.MovieRow("862", "tt0114709", "Toy Story again", "1995-10-30", nil),
		testhelpers.MovieRow("15602", "tt0113228", "Grumpier Old Men", "", nil),
	)
	ds.Ratings = append(ds.Ratings, testhelpers.RatingRow("1", "1", "0.5", "1425941999"))

	p, data := newTestPipeline(t, ds)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	first := make(map[string][]byte)
	for _, name := range TableNames {
		b, err := os.ReadFile(filepath.Join(data.CleanDir, Schemas[name].CleanFile))
		require.NoError(t, err)
		first[name] = b
	}

	second := NewPipeline(config.DataConfig{RawDir: data.RawDir, CleanDir: t.TempDir()}, nil, zap.NewNop())
	_, err = second.Run(context.Background())
	require.NoError(t, err)

	for _, name := range TableNames {
		b, err := os.ReadFile(filepath.Join(second.data.CleanDir, Schemas[name].CleanFile))
		require.NoError(t, err)
		assert.Equal(t, first[name], b, name)
	}
}

func TestPipeline_MalformedRecordsAreSkipped(t *testing.T) {
	p, data := newTestPipeline(t, testhelpers.SmallDataset())

	f, err := os.OpenFile(filepath.Join(data.RawDir, "links.csv"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("7,0114576\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Tables[Links].Malformed)
	assert.Equal(t, 3, report.Tables[Links].Read)
}

func TestPipeline_MissingSource(t *testing.T) {
	p, data := newTestPipeline(t, testhelpers.SmallDataset())
	require.NoError(t, os.Remove(filepath.Join(data.RawDir, "links.csv")))

	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnreadable)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var se *apperrors.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Links, se.Table)

	entries, err := os.ReadDir(data.CleanDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_MissingColumn(t *testing.T) {
	p, data := newTestPipeline(t, testhelpers.SmallDataset())
	testhelpers.WriteCSV(t, filepath.Join(data.RawDir, "ratings.csv"), []string{"userId", "movieId", "rating"},
		testhelpers.RatingRow("1", "1", "3.0", ""))

	_, err := p.Run(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrSourceUnreadable)
	assert.ErrorContains(t, err, "timestamp")
}

func TestPipeline_Canceled(t *testing.T) {
	p, _ := newTestPipeline(t, testhelpers.SmallDataset())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
