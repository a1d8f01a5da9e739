package loader

import (
	"encoding/json"
	"strconv"

	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/pyliteral"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// decoder turns clean CSV cells into typed document fields. Cells that fail
// to decode become nil and are counted per column.
type decoder struct {
	failures map[string]int
}

func newDecoder() *decoder {
	return &decoder{failures: make(map[string]int)}
}

func (d *decoder) fail(column string) {
	d.failures[column]++
}

// literal decodes an embedded literal cell. An empty cell yields the zero
// value and is not a failure; a cell that fails to decode also yields the
// zero value.
func literal[T any](d *decoder, column, cell string) (T, bool) {
	var zero T
	if cell == "" {
		return zero, false
	}
	raw, err := pyliteral.ToJSON(cell)
	if err != nil {
		d.fail(column)
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(column)
		return zero, false
	}
	return v, true
}

func (d *decoder) parseInt(column, cell string) (int64, bool) {
	if cell == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		d.fail(column)
		return 0, false
	}
	return n, true
}

func (d *decoder) intPtr(column, cell string) *int64 {
	n, ok := d.parseInt(column, cell)
	if !ok {
		return nil
	}
	return &n
}

func (d *decoder) parseFloat(column, cell string) (float64, bool) {
	if cell == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		d.fail(column)
		return 0, false
	}
	return f, true
}

func (d *decoder) floatPtr(column, cell string) *float64 {
	f, ok := d.parseFloat(column, cell)
	if !ok {
		return nil
	}
	return &f
}

func (d *decoder) parseBool(column, cell string) bool {
	if cell == "" {
		return false
	}
	b, err := strconv.ParseBool(cell)
	if err != nil {
		d.fail(column)
		return false
	}
	return b
}

func stringPtr(cell string) *string {
	if cell == "" {
		return nil
	}
	return &cell
}

// movie decodes row i of the clean movies table. ok is false when the row has
// no usable id.
func (d *decoder) movie(t *tabular.Table, i int) (models.MovieDocument, bool) {
	v := func(column string) string { return t.Value(i, column) }

	id, ok := d.parseInt("id", v("id"))
	if !ok {
		return models.MovieDocument{}, false
	}

	m := models.MovieDocument{
		TMDBID:           id,
		IMDBID:           v("imdb_id"),
		Title:            v("title"),
		OriginalTitle:    v("original_title"),
		OriginalLanguage: v("original_language"),
		Overview:         v("overview"),
		Tagline:          stringPtr(v("tagline")),
		Homepage:         stringPtr(v("homepage")),
		PosterPath:       stringPtr(v("poster_path")),
		Status:           v("status"),
		Adult:            d.parseBool("adult", v("adult")),
		Video:            d.parseBool("video", v("video")),
		Revenue:          d.floatPtr("revenue", v("revenue")),
		Runtime:          d.floatPtr("runtime", v("runtime")),
		VoteAverage:      d.floatPtr("vote_average", v("vote_average")),
		VoteCount:        d.intPtr("vote_count", v("vote_count")),
		ReleaseDate:      v("release_date"),
	}
	m.Budget, _ = d.parseInt("budget", v("budget"))
	m.Popularity, _ = d.parseFloat("popularity", v("popularity"))

	m.BelongsToCollection, _ = literal[*models.Collection](d, "belongs_to_collection", v("belongs_to_collection"))
	m.Genres, _ = literal[[]models.Genre](d, "genres", v("genres"))
	m.ProductionCompanies, _ = literal[[]models.Company](d, "production_companies", v("production_companies"))
	m.ProductionCountries, _ = literal[[]models.Country](d, "production_countries", v("production_countries"))
	m.SpokenLanguages, _ = literal[[]models.Language](d, "spoken_languages", v("spoken_languages"))
	return m, true
}

type credits struct {
	cast []models.CastMember
	crew []models.CrewMember
}

// creditsByID indexes the clean credits table by movie id. The first row of
// an id wins.
func (d *decoder) creditsByID(t *tabular.Table) map[int64]credits {
	out := make(map[int64]credits, t.Len())
	for i := 0; i < t.Len(); i++ {
		id, ok := d.parseInt("id", t.Value(i, "id"))
		if !ok {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		cast, _ := literal[[]models.CastMember](d, "cast", t.Value(i, "cast"))
		crew, _ := literal[[]models.CrewMember](d, "crew", t.Value(i, "crew"))
		out[id] = credits{cast: cast, crew: crew}
	}
	return out
}

// keywordsByID indexes the clean keywords table by movie id. The first row of
// an id wins.
func (d *decoder) keywordsByID(t *tabular.Table) map[int64][]models.Keyword {
	out := make(map[int64][]models.Keyword, t.Len())
	for i := 0; i < t.Len(); i++ {
		id, ok := d.parseInt("id", t.Value(i, "id"))
		if !ok {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		out[id], _ = literal[[]models.Keyword](d, "keywords", t.Value(i, "keywords"))
	}
	return out
}

// linkMap maps rating-space movieId to tmdbId.
func (d *decoder) linkMap(t *tabular.Table) map[int64]int64 {
	out := make(map[int64]int64, t.Len())
	for i := 0; i < t.Len(); i++ {
		movieID, ok := d.parseInt("movieId", t.Value(i, "movieId"))
		if !ok {
			continue
		}
		tmdbID, ok := d.parseInt("tmdbId", t.Value(i, "tmdbId"))
		if !ok {
			continue
		}
		if _, seen := out[movieID]; !seen {
			out[movieID] = tmdbID
		}
	}
	return out
}

// rating decodes row i of the clean ratings table and resolves its tmdbId.
func (d *decoder) rating(t *tabular.Table, i int, links map[int64]int64) (models.RatingDocument, bool) {
	userID, ok := d.parseInt("userId", t.Value(i, "userId"))
	if !ok {
		return models.RatingDocument{}, false
	}
	movieID, ok := d.parseInt("movieId", t.Value(i, "movieId"))
	if !ok {
		return models.RatingDocument{}, false
	}
	r := models.RatingDocument{UserID: userID, MovieID: movieID}
	r.Rating, _ = d.parseFloat("rating", t.Value(i, "rating"))
	r.Timestamp, _ = d.parseInt("timestamp", t.Value(i, "timestamp"))
	if tmdbID, ok := links[movieID]; ok {
		r.TMDBID = &tmdbID
	}
	return r, true
}
