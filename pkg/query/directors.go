package query

import (
	"cmp"
	"context"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// DirectorRevenue is a row of the top directors ranking.
type DirectorRevenue struct {
	Director      string
	MovieCount    int
	MedianRevenue float64
	MeanVote      float64
}

type directorCredit struct {
	director string
	revenue  float64
	vote     float64
}

// directorNames returns the distinct director names of a movie in credit order.
func directorNames(m *models.MovieDocument) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, d := range m.Directors() {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		seen[d.Name] = struct{}{}
		names = append(names, d.Name)
	}
	return names
}

// TopDirectors ranks directors credited on at least MinMovies movies by the
// median revenue of those movies. Only movies with crew, revenue and
// vote_average contribute.
func (e *Engine) TopDirectors(ctx context.Context) ([]DirectorRevenue, error) {
	var credits []directorCredit
	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		if m.Crew == nil || m.Revenue == nil || m.VoteAverage == nil {
			return nil
		}
		for _, name := range directorNames(m) {
			credits = append(credits, directorCredit{director: name, revenue: *m.Revenue, vote: *m.VoteAverage})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rankDirectors(credits, e.cfg.TopDirectors.MinMovies, e.cfg.TopDirectors.Limit), nil
}

func rankDirectors(credits []directorCredit, minMovies, limit int) []DirectorRevenue {
	groups := GroupBy(credits, func(c directorCredit) string { return c.director })
	groups = Filter(groups, func(g Group[string, directorCredit]) bool { return len(g.Items) >= minMovies })

	rows := make([]DirectorRevenue, 0, len(groups))
	for _, g := range groups {
		revenues := make([]float64, len(g.Items))
		votes := make([]float64, len(g.Items))
		for i, c := range g.Items {
			revenues[i] = c.revenue
			votes[i] = c.vote
		}
		median, _ := Median(revenues)
		mean, _ := Mean(votes)
		rows = append(rows, DirectorRevenue{
			Director:      g.Key,
			MovieCount:    len(g.Items),
			MedianRevenue: median,
			MeanVote:      Round(mean, 2),
		})
	}

	SortBy(rows, func(a, b DirectorRevenue) int {
		return cmp.Or(Desc(a.MedianRevenue, b.MedianRevenue), cmp.Compare(a.Director, b.Director))
	})
	return Take(rows, limit)
}

// DirectorActorPair is a row of the director and actor collaboration ranking.
type DirectorActorPair struct {
	Director      string
	Actor         string
	FilmsCount    int
	MeanVote      *float64
	MeanRevenue   float64
	ExampleTitles []string
}

type collaboration struct {
	films      int
	voteSum    float64
	voteCount  int
	revenueSum float64
	titles     []string
}

type directorActorKey struct {
	director string
	actor    string
}

// DirectorActor ranks (director, actor) pairs that worked together on at
// least MinCollaborations movies with vote_count >= MinVoteCount by the mean
// vote_average of those movies. A missing revenue counts as zero.
func (e *Engine) DirectorActor(ctx context.Context) ([]DirectorActorPair, error) {
	cfg := e.cfg.DirectorActor
	pairs := make(map[directorActorKey]*collaboration)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		if m.VoteCount == nil || *m.VoteCount < int64(cfg.MinVoteCount) {
			return nil
		}
		directors := directorNames(m)
		if len(directors) == 0 {
			return nil
		}
		actors := make([]string, 0, len(m.Cast))
		seen := make(map[string]struct{}, len(m.Cast))
		for _, c := range m.Cast {
			if _, ok := seen[c.Name]; ok {
				continue
			}
			seen[c.Name] = struct{}{}
			actors = append(actors, c.Name)
		}

		var revenue float64
		if m.Revenue != nil {
			revenue = *m.Revenue
		}
		for _, d := range directors {
			for _, a := range actors {
				key := directorActorKey{director: d, actor: a}
				c, ok := pairs[key]
				if !ok {
					c = &collaboration{}
					pairs[key] = c
				}
				c.films++
				c.revenueSum += revenue
				if m.VoteAverage != nil {
					c.voteSum += *m.VoteAverage
					c.voteCount++
				}
				if len(c.titles) < cfg.ExampleTitles {
					c.titles = append(c.titles, m.Title)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]DirectorActorPair, 0)
	for key, c := range pairs {
		if c.films < cfg.MinCollaborations {
			continue
		}
		row := DirectorActorPair{
			Director:      key.director,
			Actor:         key.actor,
			FilmsCount:    c.films,
			MeanRevenue:   c.revenueSum / float64(c.films),
			ExampleTitles: c.titles,
		}
		if c.voteCount > 0 {
			mean := c.voteSum / float64(c.voteCount)
			row.MeanVote = &mean
		}
		rows = append(rows, row)
	}

	SortBy(rows, func(a, b DirectorActorPair) int {
		return cmp.Or(
			NullsLast(a.MeanVote, b.MeanVote),
			cmp.Compare(a.Director, b.Director),
			cmp.Compare(a.Actor, b.Actor),
		)
	})
	return Take(rows, cfg.Limit), nil
}
