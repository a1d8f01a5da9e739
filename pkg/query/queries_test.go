package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/docstore/memory"
	"github.com/ekaya-inc/mongofilm/pkg/models"
)

func ptr[T any](v T) *T { return &v }

type movieOpt func(*models.MovieDocument)

func movie(id int64, title string, opts ...movieOpt) models.MovieDocument {
	m := models.MovieDocument{TMDBID: id, Title: title, OriginalLanguage: "en"}
	for _, o := range opts {
		o(&m)
	}
	return m
}

func withVote(avg float64, count int64) movieOpt {
	return func(m *models.MovieDocument) {
		m.VoteAverage = &avg
		m.VoteCount = &count
	}
}

func withRevenue(r float64) movieOpt {
	return func(m *models.MovieDocument) { m.Revenue = &r }
}

func withRelease(date string) movieOpt {
	return func(m *models.MovieDocument) { m.ReleaseDate = date }
}

func withRuntime(r float64) movieOpt {
	return func(m *models.MovieDocument) { m.Runtime = &r }
}

func withGenres(names ...string) movieOpt {
	return func(m *models.MovieDocument) {
		for i, n := range names {
			m.Genres = append(m.Genres, models.Genre{ID: int64(i + 1), Name: n})
		}
	}
}

func withCast(cast ...models.CastMember) movieOpt {
	return func(m *models.MovieDocument) { m.Cast = cast }
}

func withDirectors(names ...string) movieOpt {
	return func(m *models.MovieDocument) {
		m.Crew = append(m.Crew, models.CrewMember{Job: "Screenplay", Name: "Writer"})
		for _, n := range names {
			m.Crew = append(m.Crew, models.CrewMember{Job: models.JobDirector, Name: n})
		}
	}
}

func withCollection(id int64, name string) movieOpt {
	return func(m *models.MovieDocument) {
		m.BelongsToCollection = &models.Collection{ID: id, Name: name}
	}
}

func actor(id int64, name string) models.CastMember {
	return models.CastMember{ID: id, Name: name}
}

func billed(order int, gender *int) models.CastMember {
	return models.CastMember{ID: int64(order + 100), Name: "Cast", Order: order, Gender: gender}
}

func rating(userID, movieID int64, r float64, tmdbID int64) models.RatingDocument {
	doc := models.RatingDocument{UserID: userID, MovieID: movieID, Rating: r}
	if tmdbID != 0 {
		doc.TMDBID = &tmdbID
	}
	return doc
}

func newTestEngine(t *testing.T, movies []models.MovieDocument, ratings []models.RatingDocument, tweak func(*config.QueryConfig)) *Engine {
	t.Helper()
	return newEngineOn(t, seededStore(t, movies, ratings), tweak)
}

func seededStore(t *testing.T, movies []models.MovieDocument, ratings []models.RatingDocument) docstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New(zap.NewNop())
	if len(movies) > 0 {
		require.NoError(t, store.InsertMovies(ctx, movies))
	}
	if len(ratings) > 0 {
		require.NoError(t, store.InsertRatings(ctx, ratings))
	}
	return store
}

func newEngineOn(t *testing.T, store docstore.Store, tweak func(*config.QueryConfig)) *Engine {
	t.Helper()
	cfg := config.DefaultQueryConfig()
	if tweak != nil {
		tweak(&cfg)
	}
	e, err := NewEngine(store, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestNewEngine_InvalidPattern(t *testing.T) {
	cfg := config.DefaultQueryConfig()
	cfg.Noir.Pattern = "(unclosed"

	_, err := NewEngine(memory.New(zap.NewNop()), cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func directorMovies() []models.MovieDocument {
	movies := []models.MovieDocument{
		// Listed twice on the same film, counted once.
		movie(1, "A1", withDirectors("Alice", "Alice"), withRevenue(10), withVote(6, 10)),
		movie(2, "A2", withDirectors("Alice"), withRevenue(20), withVote(6, 10)),
		movie(3, "A3", withDirectors("Alice"), withRevenue(30), withVote(7, 10)),
		movie(4, "A4", withDirectors("Alice"), withRevenue(40), withVote(7, 10)),
		movie(5, "A5", withDirectors("Alice"), withRevenue(50), withVote(8, 10)),
		// No revenue: does not count toward Bob's films.
		movie(10, "B0", withDirectors("Bob"), withVote(9, 10)),
	}
	for i := int64(6); i <= 9; i++ {
		movies = append(movies, movie(i, "B", withDirectors("Bob"), withRevenue(1000), withVote(5, 10)))
	}
	return movies
}

func TestTopDirectors(t *testing.T) {
	ctx := context.Background()

	t.Run("threshold excludes directors with fewer films", func(t *testing.T) {
		e := newTestEngine(t, directorMovies(), nil, nil)

		rows, err := e.TopDirectors(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, DirectorRevenue{Director: "Alice", MovieCount: 5, MedianRevenue: 30, MeanVote: 6.8}, rows[0])
	})

	t.Run("lower threshold ranks by median revenue", func(t *testing.T) {
		e := newTestEngine(t, directorMovies(), nil, func(c *config.QueryConfig) { c.TopDirectors.MinMovies = 4 })

		rows, err := e.TopDirectors(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Bob", rows[0].Director)
		assert.Equal(t, 4, rows[0].MovieCount)
		assert.Equal(t, 1000.0, rows[0].MedianRevenue)
		assert.Equal(t, "Alice", rows[1].Director)
	})

	t.Run("limit", func(t *testing.T) {
		e := newTestEngine(t, directorMovies(), nil, func(c *config.QueryConfig) {
			c.TopDirectors.MinMovies = 1
			c.TopDirectors.Limit = 1
		})

		rows, err := e.TopDirectors(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Bob", rows[0].Director)
	})
}

func TestTopDirectors_DefaultExportsEveryQualifyingDirector(t *testing.T) {
	var movies []models.MovieDocument
	id := int64(1)
	for d := 0; d < 12; d++ {
		name := fmt.Sprintf("Director %02d", d)
		for f := 0; f < 5; f++ {
			movies = append(movies, movie(id, name, withDirectors(name), withRevenue(float64(1000*(d+1))), withVote(6, 10)))
			id++
		}
	}
	e := newTestEngine(t, movies, nil, nil)

	rows, err := e.TopDirectors(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 12)
	assert.Equal(t, "Director 11", rows[0].Director)
	assert.Equal(t, "Director 00", rows[11].Director)
	assert.Equal(t, 5, rows[11].MovieCount)
}

func TestActorPairs_DefaultExportsEveryPair(t *testing.T) {
	var movies []models.MovieDocument
	id := int64(1)
	for p := int64(0); p < 25; p++ {
		a, b := actor(2*p+1, fmt.Sprintf("Actor %03d", 2*p+1)), actor(2*p+2, fmt.Sprintf("Actor %03d", 2*p+2))
		for f := 0; f < 3; f++ {
			movies = append(movies, movie(id, "M", withCast(a, b), withVote(7, 10)))
			id++
		}
	}
	e := newTestEngine(t, movies, nil, nil)

	rows, err := e.ActorPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 25)
	for _, r := range rows {
		assert.Equal(t, 3, r.CoAppearances)
	}

	limited := newTestEngine(t, movies, nil, func(c *config.QueryConfig) { c.ActorPairs.Limit = 20 })
	rows, err = limited.ActorPairs(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 20)
}

func TestActorPairs(t *testing.T) {
	ann, ben, cal := actor(1, "Ann"), actor(2, "Ben"), actor(3, "Cal")
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "M1", withCast(ann, ben, cal), withVote(6, 10)),
		movie(2, "M2", withCast(ben, ann), withVote(7, 10)),
		movie(3, "M3", withCast(ann, ben, ann), withVote(8, 10)),
		movie(4, "M4", withCast(ann, ben)),
		movie(5, "M5", withCast(ann, cal), withVote(5, 10)),
	}, nil, nil)

	rows, err := e.ActorPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, int64(1), got.Actor1ID)
	assert.Equal(t, "Ann", got.Actor1Name)
	assert.Equal(t, int64(2), got.Actor2ID)
	assert.Equal(t, "Ben", got.Actor2Name)
	assert.Equal(t, 3, got.CoAppearances)
	assert.Equal(t, 7.0, got.AverageVote)
	assert.Equal(t, []string{"M1", "M2", "M3"}, got.ExampleMovies)
}

func TestGenreBreadth(t *testing.T) {
	dee, eve := actor(10, "Dee"), actor(11, "Eve")
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "M1", withGenres("Drama", "Action"), withCast(dee, eve)),
		movie(2, "M2", withGenres("Comedy"), withCast(dee)),
		movie(3, "M3", withCast(dee)),
		movie(4, "M4", withGenres("Action"), withCast(eve)),
	}, nil, func(c *config.QueryConfig) {
		c.GenreBreadth.MinMovies = 2
		c.GenreBreadth.ExampleGenres = 2
	})

	rows, err := e.GenreBreadth(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ActorGenres{
		ActorID:       10,
		ActorName:     "Dee",
		GenreCount:    3,
		MovieCount:    2,
		ExampleGenres: []string{"Action", "Comedy"},
		AllGenres:     []string{"Action", "Comedy", "Drama"},
	}, rows[0])
	assert.Equal(t, "Eve", rows[1].ActorName)
	assert.Equal(t, 2, rows[1].GenreCount)
}

func TestCollections(t *testing.T) {
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "S1", withCollection(1, "Saga"), withRevenue(100), withVote(5, 10), withRelease("2001-01-01")),
		movie(2, "S2", withCollection(1, "Saga"), withRelease("1999-05-05")),
		movie(3, "S3", withCollection(1, "Saga"), withRevenue(50), withVote(7, 10)),
		movie(4, "D1", withCollection(2, "Duo"), withRevenue(1e9)),
		movie(5, "D2", withCollection(2, "Duo"), withRevenue(1e9)),
		movie(6, "X1", withCollection(3, "  "), withRevenue(1)),
		movie(7, "X2", withCollection(3, "  "), withRevenue(1)),
		movie(8, "X3", withCollection(3, "  "), withRevenue(1)),
	}, nil, nil)

	rows, err := e.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, CollectionRevenue{
		Rank:              1,
		CollectionID:      1,
		CollectionName:    "Saga",
		MovieCount:        3,
		TotalRevenue:      150,
		MedianVoteAverage: ptr(6.0),
		EarliestRelease:   "1999-05-05",
		LatestRelease:     "2001-01-01",
	}, rows[0])
}

func TestCollections_SameIDUnderTwoNames(t *testing.T) {
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "A1", withCollection(7, "Alpha"), withRevenue(300)),
		movie(2, "A2", withCollection(7, "Alpha"), withRevenue(300)),
		movie(3, "B1", withCollection(7, "Alpha Collection"), withRevenue(100)),
		movie(4, "B2", withCollection(7, "Alpha Collection"), withRevenue(100)),
	}, nil, func(c *config.QueryConfig) { c.Collections.MinMovies = 2 })

	rows, err := e.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alpha", rows[0].CollectionName)
	assert.Equal(t, 2, rows[0].MovieCount)
	assert.Equal(t, 600.0, rows[0].TotalRevenue)
	assert.Equal(t, "Alpha Collection", rows[1].CollectionName)
	assert.Equal(t, int64(7), rows[1].CollectionID)
	assert.Equal(t, 2, rows[1].MovieCount)
}

func TestDecadeRuntime(t *testing.T) {
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "M1", withRelease("1995-01-01"), withGenres("Drama", "Comedy"), withRuntime(100)),
		movie(2, "M2", withRelease("1999-12-31"), withGenres("Drama"), withRuntime(120)),
		movie(3, "M3", withRelease("1991-06-01"), withGenres("Comedy", "Drama"), withRuntime(90)),
		movie(4, "M4", withRelease("2003-03-03"), withGenres("Drama"), withRuntime(130)),
		movie(5, "M5", withGenres("Drama"), withRuntime(500)),
		movie(6, "M6", withRelease("2003-03-03"), withGenres("Drama")),
	}, nil, nil)

	rows, err := e.DecadeRuntime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DecadeRuntime{
		{Decade: 1990, PrimaryGenre: "Drama", MovieCount: 2, MedianRuntime: 110},
		{Decade: 1990, PrimaryGenre: "Comedy", MovieCount: 1, MedianRuntime: 90},
		{Decade: 2000, PrimaryGenre: "Drama", MovieCount: 1, MedianRuntime: 130},
	}, rows)
}

func TestFemaleProportion_TopFiveByBillingOrder(t *testing.T) {
	female, male, unknown := ptr(models.GenderFemale), ptr(models.GenderMale), ptr(models.GenderUnknown)
	cast := []models.CastMember{
		billed(5, female),
		billed(0, female),
		billed(1, male),
		billed(2, nil),
		billed(3, unknown),
		billed(4, female),
	}

	got, ok := femaleProportion(cast, topBilled)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, got, 1e-9)

	_, ok = femaleProportion([]models.CastMember{billed(0, unknown)}, topBilled)
	assert.False(t, ok)
}

func TestFemaleProportion(t *testing.T) {
	female, male := ptr(models.GenderFemale), ptr(models.GenderMale)
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "M1", withRelease("1995-01-01"), withCast(billed(0, female))),
		movie(2, "M2", withRelease("1992-01-01"), withCast(billed(1, female), billed(0, male))),
		movie(3, "M3", withRelease("1998-01-01"), withCast(billed(0, ptr(models.GenderUnknown)))),
		movie(4, "M4", withRelease("2005-01-01"), withCast(billed(0, male))),
		movie(5, "M5", withRelease("2012-01-01"), withCast(billed(0, nil))),
		movie(6, "M6", withRelease("2015-01-01")),
		movie(7, "M7", withCast(billed(0, female))),
	}, nil, nil)

	rows, err := e.FemaleProportion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []DecadeGender{
		{Decade: 1990, AvgFemaleProportion: ptr(0.75), MovieCountWithGender: 2, MovieCountAll: 3},
		{Decade: 2000, AvgFemaleProportion: ptr(0.0), MovieCountWithGender: 1, MovieCountAll: 1},
		{Decade: 2010, MovieCountWithGender: 0, MovieCountAll: 1},
	}, rows)
}

func TestNoir(t *testing.T) {
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "Neo", withVote(7, 100), withRelease("1998-03-01"), func(m *models.MovieDocument) {
			m.Overview = "A neo-noir thriller"
		}),
		movie(2, "Tagged", withVote(8, 60), func(m *models.MovieDocument) {
			m.Tagline = ptr("NOIR at its best")
		}),
		movie(3, "Noirish", withVote(9, 100), func(m *models.MovieDocument) {
			m.Overview = "noirish fun"
		}),
		movie(4, "Obscure", withVote(9.5, 10), func(m *models.MovieDocument) {
			m.Overview = "classic noir"
		}),
	}, nil, nil)

	rows, err := e.Noir(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Tagged", rows[0].Title)
	assert.Nil(t, rows[0].Year)
	assert.Equal(t, "Neo", rows[1].Title)
	require.NotNil(t, rows[1].Year)
	assert.Equal(t, 1998, *rows[1].Year)
	assert.Equal(t, int64(100), rows[1].VoteCount)
}

func TestDirectorActor(t *testing.T) {
	x, y := actor(1, "Xan"), actor(2, "Yul")
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "F1", withDirectors("Dan", "Dan"), withCast(x, y, x), withVote(6, 200), withRevenue(100)),
		movie(2, "F2", withDirectors("Dan"), withCast(x), withVote(7, 150)),
		movie(3, "F3", withDirectors("Dan"), withCast(x, y), withVote(8, 100), withRevenue(200)),
		movie(4, "F4", withDirectors("Dan"), withCast(x, y), withVote(9, 50)),
	}, nil, nil)

	rows, err := e.DirectorActor(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, "Dan", got.Director)
	assert.Equal(t, "Xan", got.Actor)
	assert.Equal(t, 3, got.FilmsCount)
	require.NotNil(t, got.MeanVote)
	assert.InDelta(t, 7.0, *got.MeanVote, 1e-9)
	assert.InDelta(t, 100.0, got.MeanRevenue, 1e-9)
	assert.Equal(t, []string{"F1", "F2", "F3"}, got.ExampleTitles)
}

func TestLanguages(t *testing.T) {
	us := models.Country{ISO3166_1: "US", Name: "United States of America"}
	lang := func(code string) movieOpt {
		return func(m *models.MovieDocument) { m.OriginalLanguage = code }
	}
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "Amelie", lang("fr"), func(m *models.MovieDocument) {
			m.ProductionCountries = []models.Country{us}
		}),
		movie(2, "Taxi", lang("fr"), func(m *models.MovieDocument) {
			m.ProductionCountries = []models.Country{{ISO3166_1: "FR", Name: "France"}}
			m.ProductionCompanies = []models.Company{{ID: 9, Name: "Studio", OriginCountry: "US"}}
		}),
		movie(3, "Ringu", lang("ja"), func(m *models.MovieDocument) {
			m.ProductionCountries = []models.Country{{Name: "United States of America"}}
		}),
		movie(4, "Heat", lang("en"), func(m *models.MovieDocument) {
			m.ProductionCountries = []models.Country{us}
		}),
		movie(5, "Das Boot", lang("de"), func(m *models.MovieDocument) {
			m.ProductionCountries = []models.Country{{ISO3166_1: "DE", Name: "Germany"}}
		}),
	}, nil, nil)

	rows, err := e.Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []LanguageCount{
		{Language: "fr", Count: 2, ExampleTitle: "Amelie"},
		{Language: "ja", Count: 1, ExampleTitle: "Ringu"},
	}, rows)
}

func TestLanguages_MissingLanguageKeepsItsOwnBucket(t *testing.T) {
	us := []models.Country{{ISO3166_1: "US", Name: "United States of America"}}
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "Untitled", func(m *models.MovieDocument) {
			m.OriginalLanguage = ""
			m.ProductionCountries = us
		}),
		movie(2, "Unknown", func(m *models.MovieDocument) {
			m.OriginalLanguage = ""
			m.ProductionCountries = us
		}),
		movie(3, "Amelie", func(m *models.MovieDocument) {
			m.OriginalLanguage = "fr"
			m.ProductionCountries = us
		}),
	}, nil, nil)

	rows, err := e.Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []LanguageCount{
		{Language: "", Count: 2, ExampleTitle: "Untitled"},
		{Language: "fr", Count: 1, ExampleTitle: "Amelie"},
	}, rows)
}

func TestUserStats(t *testing.T) {
	e := newTestEngine(t, []models.MovieDocument{
		movie(1, "M1", withGenres("Action", "Drama")),
		movie(2, "M2", withGenres("Comedy")),
		movie(3, "M3"),
	}, []models.RatingDocument{
		rating(1, 101, 3.0, 1),
		rating(1, 102, 5.0, 2),
		rating(1, 103, 4.0, 0),
		rating(2, 101, 4.0, 1),
		rating(2, 104, 1.0, 999),
		rating(3, 105, 2.0, 0),
	}, func(c *config.QueryConfig) { c.UserStats.MinRatingsForVariance = 2 })

	boards, err := e.UserStats(context.Background())
	require.NoError(t, err)

	require.Len(t, boards.GenreDiverse, 2)
	first := boards.GenreDiverse[0]
	assert.Equal(t, int64(1), first.UserID)
	assert.Equal(t, int64(2), first.RatingCount)
	assert.Equal(t, 8.0, first.RatingSum)
	assert.Equal(t, 34.0, first.RatingSumSq)
	assert.Equal(t, 2, first.MovieCountDistinct)
	assert.Equal(t, []string{"Action", "Comedy", "Drama"}, first.GenresAll)
	assert.Equal(t, 3, first.DistinctGenreCount)
	require.NotNil(t, first.PopulationVariance)
	assert.InDelta(t, 1.0, *first.PopulationVariance, 1e-9)

	second := boards.GenreDiverse[1]
	assert.Equal(t, int64(2), second.UserID)
	assert.Equal(t, []string{"Action", "Drama"}, second.GenresAll)
	assert.Equal(t, 2, second.MovieCountDistinct)

	require.Len(t, boards.Variance, 2)
	assert.Equal(t, int64(2), boards.Variance[0].UserID)
	assert.InDelta(t, 2.25, *boards.Variance[0].PopulationVariance, 1e-9)
	assert.Equal(t, int64(1), boards.Variance[1].UserID)
}

func TestUserStats_RatingsInsertedOutOfUserOrder(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, []models.MovieDocument{
		movie(1, "M1", withGenres("Action")),
		movie(2, "M2", withGenres("Comedy")),
	}, nil)
	// User 1's ratings arrive in two batches around user 2's.
	require.NoError(t, store.InsertRatings(ctx, []models.RatingDocument{rating(1, 102, 5.0, 2), rating(2, 101, 4.0, 1)}))
	require.NoError(t, store.InsertRatings(ctx, []models.RatingDocument{rating(2, 102, 1.0, 2), rating(1, 101, 3.0, 1)}))
	e := newEngineOn(t, store, func(c *config.QueryConfig) { c.UserStats.MinRatingsForVariance = 2 })

	boards, err := e.UserStats(ctx)
	require.NoError(t, err)
	require.Len(t, boards.GenreDiverse, 2)

	for _, u := range boards.GenreDiverse {
		assert.Equal(t, int64(2), u.RatingCount, "user %d", u.UserID)
		assert.Equal(t, []string{"Action", "Comedy"}, u.GenresAll)
	}
	require.Len(t, boards.Variance, 2)
	assert.Equal(t, int64(2), boards.Variance[0].UserID)
	assert.InDelta(t, 1.0, *boards.Variance[1].PopulationVariance, 1e-9)
}

func TestUserStats_VarianceThreshold(t *testing.T) {
	e := newTestEngine(t, []models.MovieDocument{movie(1, "M1")}, []models.RatingDocument{
		rating(1, 101, 3.0, 1),
	}, nil)

	boards, err := e.UserStats(context.Background())
	require.NoError(t, err)
	assert.Len(t, boards.GenreDiverse, 1)
	assert.Empty(t, boards.Variance)
}

type failingStore struct {
	docstore.Store
	err error
}

func (s *failingStore) ScanRatings(ctx context.Context, fn func(*models.RatingDocument) error) error {
	return s.err
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	store := &failingStore{Store: seededStore(t, directorMovies(), nil), err: boom}
	e := newEngineOn(t, store, nil)

	results, err := e.RunAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, len(Definitions))

	for i, res := range results {
		assert.Equal(t, Definitions[i].Name, res.Query)
		if res.Query == UserStatsQuery {
			assert.ErrorIs(t, res.Err, apperrors.ErrQueryExecution)
			assert.ErrorIs(t, res.Err, boom)
			assert.Empty(t, res.Outputs)
			continue
		}
		assert.NoError(t, res.Err, res.Query)
		assert.NotEmpty(t, res.Outputs, res.Query)
	}
}

func TestRunAll_Subset(t *testing.T) {
	e := newTestEngine(t, directorMovies(), nil, nil)

	results, err := e.RunAll(context.Background(), []string{LanguagesQuery, TopDirectorsQuery})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, TopDirectorsQuery, results[0].Query)
	assert.Equal(t, 1, results[0].Rows)
	assert.Equal(t, LanguagesQuery, results[1].Query)
}

func TestUnknownQuery(t *testing.T) {
	e := newTestEngine(t, nil, nil, nil)

	_, err := e.RunAll(context.Background(), []string{TopDirectorsQuery, "nope"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownQuery)

	res := e.Run(context.Background(), "nope")
	assert.ErrorIs(t, res.Err, apperrors.ErrUnknownQuery)
}

func TestRun_Outputs(t *testing.T) {
	e := newTestEngine(t, directorMovies(), nil, nil)

	res := e.Run(context.Background(), TopDirectorsQuery)
	require.NoError(t, res.Err)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "top_directors.csv", res.Outputs[0].File)
	assert.Equal(t, 1, res.Rows)

	res = e.Run(context.Background(), UserStatsQuery)
	require.NoError(t, res.Err)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, 0, res.Rows)
}

func TestNames_MatchDefinitions(t *testing.T) {
	names := Names()
	require.Len(t, names, 10)
	for _, n := range names {
		_, ok := Lookup(n)
		assert.True(t, ok, n)
	}
}
