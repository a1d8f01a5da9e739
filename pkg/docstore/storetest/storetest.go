// Package storetest is the behavioral contract every docstore backend is
// tested against.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/models"
)

func ptr[T any](v T) *T { return &v }

// Movie returns a movie document with every nested field populated.
func Movie(tmdbID int64, title string) models.MovieDocument {
	female := models.GenderFemale
	return models.MovieDocument{
		TMDBID:           tmdbID,
		IMDBID:           "tt" + title,
		Title:            title,
		OriginalTitle:    title,
		OriginalLanguage: "en",
		Overview:         "About " + title,
		Tagline:          ptr("A tagline"),
		Status:           "Released",
		Budget:           30000000,
		Revenue:          ptr(373554033.0),
		Runtime:          ptr(81.0),
		Popularity:       21.946943,
		VoteAverage:      ptr(7.7),
		VoteCount:        ptr(int64(5415)),
		ReleaseDate:      "1995-10-30",
		BelongsToCollection: &models.Collection{
			ID:         10194,
			Name:       "Toy Story Collection",
			PosterPath: ptr("/7G9915LfUQ2lVfwMEEhDsn3kT4B.jpg"),
		},
		Genres:              []models.Genre{{ID: 16, Name: "Animation"}, {ID: 35, Name: "Comedy"}},
		ProductionCompanies: []models.Company{{ID: 3, Name: "Pixar Animation Studios"}},
		ProductionCountries: []models.Country{{ISO3166_1: "US", Name: "United States of America"}},
		SpokenLanguages:     []models.Language{{ISO639_1: "en", Name: "English"}},
		Cast: []models.CastMember{
			{CastID: 14, Character: "Woody (voice)", CreditID: "52fe4284c3a36847f8024f95", Gender: &female, ID: 31, Name: "Tom Hanks", Order: 0},
		},
		Crew: []models.CrewMember{
			{CreditID: "52fe4284c3a36847f8024f49", Department: "Directing", ID: 7879, Job: models.JobDirector, Name: "John Lasseter"},
		},
		Keywords: []models.Keyword{{ID: 931, Name: "jealousy"}},
	}
}

// Rating returns a rating document. tmdbID 0 means unresolved.
func Rating(userID, movieID int64, rating float64, tmdbID int64) models.RatingDocument {
	r := models.RatingDocument{UserID: userID, MovieID: movieID, Rating: rating, Timestamp: 1425941529}
	if tmdbID != 0 {
		r.TMDBID = &tmdbID
	}
	return r
}

// Run executes the contract against stores created by open. Each subtest gets
// a store that has been Reset.
func Run(t *testing.T, open func(t *testing.T) docstore.Store) {
	ctx := context.Background()

	fresh := func(t *testing.T) docstore.Store {
		t.Helper()
		s := open(t)
		require.NoError(t, s.Reset(ctx))
		return s
	}

	t.Run("movies round trip in tmdbId order", func(t *testing.T) {
		s := fresh(t)

		bare := models.MovieDocument{TMDBID: 5, Title: "Bare", Genres: []models.Genre{}, Cast: []models.CastMember{}}
		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{Movie(862, "ToyStory"), bare}))
		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{Movie(12, "Nemo")}))

		movies, err := docstore.CollectMovies(ctx, s)
		require.NoError(t, err)
		require.Len(t, movies, 3)
		assert.Equal(t, []int64{5, 12, 862}, []int64{movies[0].TMDBID, movies[1].TMDBID, movies[2].TMDBID})

		assert.Equal(t, Movie(862, "ToyStory"), movies[2])

		got := movies[0]
		assert.Nil(t, got.Tagline)
		assert.Nil(t, got.Revenue)
		assert.Nil(t, got.BelongsToCollection)
		// No credits row and an empty cast are different things.
		assert.Nil(t, got.Crew)
		assert.NotNil(t, got.Cast)
		assert.Empty(t, got.Cast)
		assert.NotNil(t, got.Genres)
		assert.Nil(t, got.Keywords)
	})

	t.Run("ratings in userId movieId order", func(t *testing.T) {
		s := fresh(t)

		require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{
			Rating(2, 6, 4.0, 949),
			Rating(1, 2, 5.0, 8844),
			Rating(1, 1, 3.0, 862),
			Rating(3, 998, 2.5, 0),
		}))

		ratings, err := docstore.CollectRatings(ctx, s)
		require.NoError(t, err)
		require.Len(t, ratings, 4)

		assert.Equal(t, Rating(1, 1, 3.0, 862), ratings[0])
		assert.Equal(t, Rating(1, 2, 5.0, 8844), ratings[1])
		assert.Equal(t, Rating(2, 6, 4.0, 949), ratings[2])
		assert.Nil(t, ratings[3].TMDBID)
	})

	t.Run("ratings order holds across batches", func(t *testing.T) {
		s := fresh(t)

		require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{Rating(5, 1, 1.0, 862), Rating(2, 3, 2.0, 949)}))
		require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{Rating(2, 1, 3.0, 862), Rating(5, 7, 4.0, 0)}))

		ratings, err := docstore.CollectRatings(ctx, s)
		require.NoError(t, err)
		var keys [][2]int64
		for _, r := range ratings {
			keys = append(keys, [2]int64{r.UserID, r.MovieID})
		}
		assert.Equal(t, [][2]int64{{2, 1}, {2, 3}, {5, 1}, {5, 7}}, keys)
	})

	t.Run("stats", func(t *testing.T) {
		s := fresh(t)

		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{Movie(862, "ToyStory")}))
		require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{
			Rating(1, 1, 3.0, 862),
			Rating(1, 999, 1.0, 0),
			Rating(2, 1, 4.0, 862),
			Rating(2, 998, 1.0, 0),
		}))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, docstore.Stats{Movies: 1, Ratings: 4, RatingsWithTMDB: 2}, stats)
		assert.InDelta(t, 50.0, stats.Coverage(), 1e-9)
	})

	t.Run("duplicate keys are rejected once indexed", func(t *testing.T) {
		s := fresh(t)
		require.NoError(t, s.EnsureIndexes(ctx))
		require.NoError(t, s.EnsureIndexes(ctx))

		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{Movie(862, "ToyStory")}))
		err := s.InsertMovies(ctx, []models.MovieDocument{Movie(862, "Again")})
		assert.ErrorIs(t, err, docstore.ErrDuplicateKey)

		require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{Rating(1, 1, 3.0, 862)}))
		err = s.InsertRatings(ctx, []models.RatingDocument{Rating(1, 1, 4.0, 862)})
		assert.ErrorIs(t, err, docstore.ErrDuplicateKey)
	})

	t.Run("scan stops early", func(t *testing.T) {
		s := fresh(t)
		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{
			Movie(1, "A"), Movie(2, "B"), Movie(3, "C"),
		}))

		var seen []int64
		err := s.ScanMovies(ctx, func(m *models.MovieDocument) error {
			seen = append(seen, m.TMDBID)
			if len(seen) == 2 {
				return docstore.ErrStopScan
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, seen)

		boom := errors.New("boom")
		err = s.ScanMovies(ctx, func(*models.MovieDocument) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("reset empties both collections", func(t *testing.T) {
		s := fresh(t)
		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{Movie(862, "ToyStory")}))
		require.NoError(t, s.InsertRatings(ctx, []models.RatingDocument{Rating(1, 1, 3.0, 862)}))
		require.NoError(t, s.EnsureIndexes(ctx))

		require.NoError(t, s.Reset(ctx))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, docstore.Stats{}, stats)

		// The same keys can be inserted again.
		require.NoError(t, s.InsertMovies(ctx, []models.MovieDocument{Movie(862, "ToyStory")}))
	})
}
