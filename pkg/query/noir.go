package query

import (
	"cmp"
	"context"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// NoirFilm is a row of the noir ranking. Year is nil when the release date is
// missing or invalid.
type NoirFilm struct {
	Title       string
	Year        *int
	ReleaseDate string
	VoteAverage *float64
	VoteCount   int64
}

// matchesNoir reports whether the overview or the tagline matches the noir
// pattern.
func (e *Engine) matchesNoir(m *models.MovieDocument) bool {
	if e.noir.MatchString(m.Overview) {
		return true
	}
	return m.Tagline != nil && e.noir.MatchString(*m.Tagline)
}

// Noir lists the best rated movies with vote_count >= MinVoteCount whose
// overview or tagline mentions noir or neo-noir.
func (e *Engine) Noir(ctx context.Context) ([]NoirFilm, error) {
	cfg := e.cfg.Noir
	var rows []NoirFilm

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		if m.VoteCount == nil || *m.VoteCount < int64(cfg.MinVoteCount) || !e.matchesNoir(m) {
			return nil
		}
		row := NoirFilm{
			Title:       m.Title,
			ReleaseDate: m.ReleaseDate,
			VoteAverage: m.VoteAverage,
			VoteCount:   *m.VoteCount,
		}
		if year, ok := m.ReleaseYear(); ok {
			row.Year = &year
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortBy(rows, func(a, b NoirFilm) int {
		return cmp.Or(NullsLast(a.VoteAverage, b.VoteAverage), Desc(a.VoteCount, b.VoteCount))
	})
	return Take(rows, cfg.Limit), nil
}
