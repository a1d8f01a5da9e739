package query

import (
	"cmp"
	"context"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// ActorPair is a row of the co-starring ranking. Actor1 always has the lower
// id.
type ActorPair struct {
	Actor1ID      int64
	Actor1Name    string
	Actor2ID      int64
	Actor2Name    string
	CoAppearances int
	AverageVote   float64
	ExampleMovies []string
}

type pairKey struct {
	a, b int64
}

type pairStats struct {
	nameA, nameB string
	count        int
	voteSum      float64
	titles       []string
}

// distinctCast returns the cast of a movie with repeated actor ids removed,
// keeping the first credit of each actor.
func distinctCast(cast []models.CastMember) []models.CastMember {
	out := make([]models.CastMember, 0, len(cast))
	seen := make(map[int64]struct{}, len(cast))
	for _, c := range cast {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ActorPairs counts, for every unordered pair of actors, the movies with a
// vote_average on which both are credited, and ranks pairs with at least
// MinMovies co-appearances.
func (e *Engine) ActorPairs(ctx context.Context) ([]ActorPair, error) {
	cfg := e.cfg.ActorPairs
	pairs := make(map[pairKey]*pairStats)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		if len(m.Cast) < 2 || m.VoteAverage == nil {
			return nil
		}
		cast := distinctCast(m.Cast)
		for i := 0; i < len(cast); i++ {
			for j := i + 1; j < len(cast); j++ {
				a, b := cast[i], cast[j]
				if a.ID > b.ID {
					a, b = b, a
				}
				key := pairKey{a: a.ID, b: b.ID}
				s, ok := pairs[key]
				if !ok {
					s = &pairStats{nameA: a.Name, nameB: b.Name}
					pairs[key] = s
				}
				s.count++
				s.voteSum += *m.VoteAverage
				if len(s.titles) < cfg.ExampleTitles {
					s.titles = append(s.titles, m.Title)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rows []ActorPair
	for key, s := range pairs {
		if s.count < cfg.MinMovies {
			continue
		}
		rows = append(rows, ActorPair{
			Actor1ID:      key.a,
			Actor1Name:    s.nameA,
			Actor2ID:      key.b,
			Actor2Name:    s.nameB,
			CoAppearances: s.count,
			AverageVote:   Round(s.voteSum/float64(s.count), 2),
			ExampleMovies: s.titles,
		})
	}

	SortBy(rows, func(x, y ActorPair) int {
		return cmp.Or(
			Desc(x.CoAppearances, y.CoAppearances),
			cmp.Compare(x.Actor1Name, y.Actor1Name),
			cmp.Compare(x.Actor1ID, y.Actor1ID),
			cmp.Compare(x.Actor2ID, y.Actor2ID),
		)
	})
	return Take(rows, cfg.Limit), nil
}

// ActorGenres is a row of the genre breadth ranking.
type ActorGenres struct {
	ActorID       int64
	ActorName     string
	GenreCount    int
	MovieCount    int
	ExampleGenres []string
	AllGenres     []string
}

type actorStats struct {
	name   string
	movies int
	genres genreSet
}

type actorKey struct {
	id   int64
	name string
}

// GenreBreadth ranks actors with at least MinMovies credits on genred movies
// by the number of distinct genres those movies span.
func (e *Engine) GenreBreadth(ctx context.Context) ([]ActorGenres, error) {
	cfg := e.cfg.GenreBreadth
	idx := newGenreIndex()
	actors := make(map[actorKey]*actorStats)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		if len(m.Cast) == 0 || len(m.Genres) == 0 {
			return nil
		}
		var genres genreSet
		for _, g := range m.Genres {
			genres = genres.with(idx.add(g.Name))
		}
		for _, c := range m.Cast {
			key := actorKey{id: c.ID, name: c.Name}
			s, ok := actors[key]
			if !ok {
				s = &actorStats{name: c.Name}
				actors[key] = s
			}
			s.movies++
			s.genres = s.genres.union(genres)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rows []ActorGenres
	for key, s := range actors {
		if s.movies < cfg.MinMovies {
			continue
		}
		all := s.genres.names(idx)
		rows = append(rows, ActorGenres{
			ActorID:       key.id,
			ActorName:     s.name,
			GenreCount:    len(all),
			MovieCount:    s.movies,
			ExampleGenres: Take(all, cfg.ExampleGenres),
			AllGenres:     all,
		})
	}

	SortBy(rows, func(a, b ActorGenres) int {
		return cmp.Or(
			Desc(a.GenreCount, b.GenreCount),
			cmp.Compare(a.ActorName, b.ActorName),
			cmp.Compare(a.ActorID, b.ActorID),
		)
	})
	return Take(rows, cfg.Limit), nil
}
