package query

import (
	"cmp"
	"context"
	"strings"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// CollectionRevenue is a row of the collections ranking.
type CollectionRevenue struct {
	Rank              int
	CollectionID      int64
	CollectionName    string
	MovieCount        int
	TotalRevenue      float64
	MedianVoteAverage *float64
	EarliestRelease   string
	LatestRelease     string
}

// collectionKey groups like $group on {id, name}: one id under two names is
// two franchises.
type collectionKey struct {
	id   int64
	name string
}

type collectionStats struct {
	movies   int
	revenue  float64
	votes    []float64
	earliest string
	latest   string
}

// Collections ranks franchises with at least MinMovies movies by their total
// revenue. A missing revenue counts as zero and movies without a vote do not
// contribute to the median.
func (e *Engine) Collections(ctx context.Context) ([]CollectionRevenue, error) {
	cfg := e.cfg.Collections
	stats := make(map[collectionKey]*collectionStats)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		c := m.BelongsToCollection
		if c == nil || strings.TrimSpace(c.Name) == "" {
			return nil
		}
		key := collectionKey{id: c.ID, name: c.Name}
		s, ok := stats[key]
		if !ok {
			s = &collectionStats{}
			stats[key] = s
		}
		s.movies++
		if m.Revenue != nil {
			s.revenue += *m.Revenue
		}
		if m.VoteAverage != nil {
			s.votes = append(s.votes, *m.VoteAverage)
		}
		// ISO dates compare correctly as strings.
		if _, ok := models.ParseReleaseDate(m.ReleaseDate); ok {
			if s.earliest == "" || m.ReleaseDate < s.earliest {
				s.earliest = m.ReleaseDate
			}
			if m.ReleaseDate > s.latest {
				s.latest = m.ReleaseDate
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rows []CollectionRevenue
	for key, s := range stats {
		if s.movies < cfg.MinMovies {
			continue
		}
		row := CollectionRevenue{
			CollectionID:    key.id,
			CollectionName:  key.name,
			MovieCount:      s.movies,
			TotalRevenue:    s.revenue,
			EarliestRelease: s.earliest,
			LatestRelease:   s.latest,
		}
		if median, ok := Median(s.votes); ok {
			median = Round(median, 2)
			row.MedianVoteAverage = &median
		}
		rows = append(rows, row)
	}

	SortBy(rows, func(a, b CollectionRevenue) int {
		return cmp.Or(Desc(a.TotalRevenue, b.TotalRevenue), cmp.Compare(a.CollectionID, b.CollectionID), cmp.Compare(a.CollectionName, b.CollectionName))
	})
	rows = Take(rows, cfg.Limit)
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
