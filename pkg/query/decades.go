package query

import (
	"cmp"
	"context"
	"slices"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// DecadeRuntime is a row of the runtime by decade and primary genre report.
type DecadeRuntime struct {
	Decade        int
	PrimaryGenre  string
	MovieCount    int
	MedianRuntime float64
}

type decadeGenre struct {
	decade int
	genre  string
}

// DecadeRuntime reports the median runtime per (decade, primary genre), where
// the primary genre is the first listed genre. Movies without a valid release
// date, a runtime or a genre are skipped.
func (e *Engine) DecadeRuntime(ctx context.Context) ([]DecadeRuntime, error) {
	runtimes := make(map[decadeGenre][]float64)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		year, ok := m.ReleaseYear()
		if !ok || m.Runtime == nil || len(m.Genres) == 0 || m.Genres[0].Name == "" {
			return nil
		}
		key := decadeGenre{decade: models.Decade(year), genre: m.Genres[0].Name}
		runtimes[key] = append(runtimes[key], *m.Runtime)
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]DecadeRuntime, 0, len(runtimes))
	for key, values := range runtimes {
		median, _ := Median(values)
		rows = append(rows, DecadeRuntime{
			Decade:        key.decade,
			PrimaryGenre:  key.genre,
			MovieCount:    len(values),
			MedianRuntime: median,
		})
	}

	SortBy(rows, func(a, b DecadeRuntime) int {
		return cmp.Or(
			cmp.Compare(a.Decade, b.Decade),
			Desc(a.MedianRuntime, b.MedianRuntime),
			cmp.Compare(a.PrimaryGenre, b.PrimaryGenre),
		)
	})
	return rows, nil
}

// DecadeGender is a row of the female cast proportion report.
// AvgFemaleProportion is nil when no movie of the decade had a top-billed
// cast member of known gender.
type DecadeGender struct {
	Decade               int
	AvgFemaleProportion  *float64
	MovieCountWithGender int
	MovieCountAll        int
}

type decadeGender struct {
	all         int
	proportions []float64
}

// femaleProportion returns the share of women among the top n billed cast
// members whose gender is known. ok is false when none is known.
func femaleProportion(cast []models.CastMember, n int) (float64, bool) {
	billed := slices.Clone(cast)
	slices.SortStableFunc(billed, func(a, b models.CastMember) int { return cmp.Compare(a.Order, b.Order) })
	billed = Take(billed, n)

	var female, known int
	for _, c := range billed {
		if c.Gender == nil {
			continue
		}
		switch *c.Gender {
		case models.GenderFemale:
			female++
			known++
		case models.GenderMale:
			known++
		}
	}
	if known == 0 {
		return 0, false
	}
	return float64(female) / float64(known), true
}

// topBilled is the number of cast members, by billing order, considered per movie.
const topBilled = 5

// FemaleProportion reports, per decade, the mean over movies of the female
// share of the top-billed cast. Movies with a cast list but no known gender
// count toward MovieCountAll only.
func (e *Engine) FemaleProportion(ctx context.Context) ([]DecadeGender, error) {
	decades := make(map[int]*decadeGender)

	err := e.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		year, ok := m.ReleaseYear()
		if !ok || m.Cast == nil {
			return nil
		}
		d := models.Decade(year)
		s, ok := decades[d]
		if !ok {
			s = &decadeGender{}
			decades[d] = s
		}
		s.all++
		if p, ok := femaleProportion(m.Cast, topBilled); ok {
			s.proportions = append(s.proportions, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]DecadeGender, 0, len(decades))
	for d, s := range decades {
		row := DecadeGender{
			Decade:               d,
			MovieCountWithGender: len(s.proportions),
			MovieCountAll:        s.all,
		}
		if mean, ok := Mean(s.proportions); ok {
			row.AvgFemaleProportion = &mean
		}
		rows = append(rows, row)
	}

	SortBy(rows, func(a, b DecadeGender) int {
		return cmp.Or(NullsLast(a.AvgFemaleProportion, b.AvgFemaleProportion), cmp.Compare(a.Decade, b.Decade))
	})
	return rows, nil
}
