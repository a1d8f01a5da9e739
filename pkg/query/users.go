package query

import (
	"cmp"
	"context"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// UserStat is a row of the user leaderboards.
type UserStat struct {
	UserID             int64
	RatingCount        int64
	RatingSum          float64
	RatingSumSq        float64
	MovieCountDistinct int
	GenresAll          []string
	ExampleGenres      []string
	PopulationVariance *float64
	DistinctGenreCount int
}

// UserBoards are the two user leaderboards.
type UserBoards struct {
	GenreDiverse []UserStat
	Variance     []UserStat
}

type userAcc struct {
	id       int64
	count    int64
	sum      float64
	sumSq    float64
	movies   map[int64]struct{}
	genres   genreSet
	variance *float64
}

func (u *userAcc) genreCount() int { return u.genres.count() }

// UserStats aggregates linked ratings per user and returns the users who
// rated the widest range of genres and, among users with at least
// MinRatingsForVariance ratings, the users whose ratings vary the most.
//
// Ratings arrive grouped by user, so only one user is accumulated at a time.
func (e *Engine) UserStats(ctx context.Context) (*UserBoards, error) {
	cfg := e.cfg.UserStats
	idx := newGenreIndex()
	movieGenres := make(map[int64]genreSet)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		var set genreSet
		for _, g := range m.Genres {
			set = set.with(idx.add(g.Name))
		}
		movieGenres[m.TMDBID] = set
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		users []*userAcc
		cur   *userAcc
	)
	flush := func() {
		if cur == nil {
			return
		}
		if v, ok := PopulationVariance(cur.count, cur.sum, cur.sumSq); ok {
			cur.variance = &v
		}
		users = append(users, cur)
		cur = nil
	}

	err = e.store.ScanRatings(ctx, func(r *models.RatingDocument) error {
		if r.TMDBID == nil {
			return nil
		}
		if cur == nil || cur.id != r.UserID {
			flush()
			cur = &userAcc{id: r.UserID, movies: make(map[int64]struct{})}
		}
		cur.count++
		cur.sum += r.Rating
		cur.sumSq += r.Rating * r.Rating
		if _, seen := cur.movies[*r.TMDBID]; !seen {
			cur.movies[*r.TMDBID] = struct{}{}
			if set, ok := movieGenres[*r.TMDBID]; ok {
				cur.genres = cur.genres.union(set)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	flush()

	byUser := func(a, b *userAcc) int {
		return cmp.Or(Desc(a.count, b.count), cmp.Compare(a.id, b.id))
	}

	diverse := append([]*userAcc(nil), users...)
	SortBy(diverse, func(a, b *userAcc) int {
		return cmp.Or(Desc(a.genreCount(), b.genreCount()), byUser(a, b))
	})

	variance := Filter(users, func(u *userAcc) bool { return u.count >= int64(cfg.MinRatingsForVariance) })
	SortBy(variance, func(a, b *userAcc) int {
		return cmp.Or(NullsLast(a.variance, b.variance), byUser(a, b))
	})

	return &UserBoards{
		GenreDiverse: e.userRows(Take(diverse, cfg.Limit), idx),
		Variance:     e.userRows(Take(variance, cfg.Limit), idx),
	}, nil
}

func (e *Engine) userRows(users []*userAcc, idx *genreIndex) []UserStat {
	rows := make([]UserStat, 0, len(users))
	for _, u := range users {
		all := u.genres.names(idx)
		rows = append(rows, UserStat{
			UserID:             u.id,
			RatingCount:        u.count,
			RatingSum:          u.sum,
			RatingSumSq:        u.sumSq,
			MovieCountDistinct: len(u.movies),
			GenresAll:          all,
			ExampleGenres:      Take(all, e.cfg.UserStats.ExampleGenres),
			PopulationVariance: u.variance,
			DistinctGenreCount: len(all),
		})
	}
	return rows
}
