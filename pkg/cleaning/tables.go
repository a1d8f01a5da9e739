package cleaning

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/metrics"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// Tables holds the five tables of the dataset.
type Tables struct {
	Movies   *tabular.Table
	Credits  *tabular.Table
	Keywords *tabular.Table
	Ratings  *tabular.Table
	Links    *tabular.Table
}

// Get returns a table by name.
func (ts *Tables) Get(name string) *tabular.Table {
	switch name {
	case Movies:
		return ts.Movies
	case Credits:
		return ts.Credits
	case Keywords:
		return ts.Keywords
	case Ratings:
		return ts.Ratings
	case Links:
		return ts.Links
	default:
		return nil
	}
}

// Put stores a table by name.
func (ts *Tables) Put(name string, t *tabular.Table) {
	switch name {
	case Movies:
		ts.Movies = t
	case Credits:
		ts.Credits = t
	case Keywords:
		ts.Keywords = t
	case Ratings:
		ts.Ratings = t
	case Links:
		ts.Links = t
	}
}

// Step is the row count before and after one stage.
type Step struct {
	Stage  string `yaml:"stage" json:"stage"`
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`
	Before int    `yaml:"before" json:"before"`
	After  int    `yaml:"after" json:"after"`
}

// Dropped is the number of rows removed by the step.
func (s Step) Dropped() int { return s.Before - s.After }

// TableReport summarizes the cleaning of one table.
type TableReport struct {
	Table        string `yaml:"table" json:"table"`
	Read         int    `yaml:"read" json:"read"`
	Malformed    int    `yaml:"malformed" json:"malformed"`
	InvalidCells int    `yaml:"invalid_cells" json:"invalid_cells"`
	Steps        []Step `yaml:"steps" json:"steps"`
	Written      int    `yaml:"written" json:"written"`
}

// Report summarizes a cleaning run.
type Report struct {
	Tables map[string]*TableReport `yaml:"tables" json:"tables"`
}

// NewReport creates a report with an entry per table.
func NewReport() *Report {
	r := &Report{Tables: make(map[string]*TableReport, len(TableNames))}
	for _, name := range TableNames {
		r.Tables[name] = &TableReport{Table: name}
	}
	return r
}

// recorder applies stages to a table and records their effect.
type recorder struct {
	report  *TableReport
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (r *recorder) apply(t *tabular.Table, stage, detail string, fn func(*tabular.Table) *tabular.Table) *tabular.Table {
	before := t.Len()
	out := fn(t)
	step := Step{Stage: stage, Detail: detail, Before: before, After: out.Len()}
	r.report.Steps = append(r.report.Steps, step)
	r.metrics.RecordStage(r.report.Table, stage, step.Before, step.After)
	r.logger.Debug("Cleaning stage applied",
		zap.String("table", r.report.Table),
		zap.String("stage", stage),
		zap.String("detail", detail),
		zap.Int("before", step.Before),
		zap.Int("dropped", step.Dropped()))
	return out
}

// Cleaner applies the per-table rules and the cross-table reconciliation.
type Cleaner struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCleaner creates a Cleaner. m may be nil.
func NewCleaner(m *metrics.Metrics, logger *zap.Logger) *Cleaner {
	return &Cleaner{metrics: m, logger: logger.Named("cleaning")}
}

func (c *Cleaner) recorder(report *Report, table string) *recorder {
	tr, ok := report.Tables[table]
	if !ok {
		tr = &TableReport{Table: table}
		report.Tables[table] = tr
	}
	return &recorder{report: tr, metrics: c.metrics, logger: c.logger}
}

// CleanAll runs the per-table rules on every table and then reconciles them.
// The input tables are modified in place by type coercion.
func (c *Cleaner) CleanAll(in *Tables, report *Report) *Tables {
	out := &Tables{
		Movies:   c.CleanMovies(in.Movies, report),
		Credits:  c.CleanCredits(in.Credits, report),
		Keywords: c.CleanKeywords(in.Keywords, report),
		Ratings:  c.CleanRatings(in.Ratings, report),
		Links:    c.CleanLinks(in.Links, report),
	}
	return c.Reconcile(out, report)
}

func (c *Cleaner) coerce(t *tabular.Table, table string, report *Report) {
	invalid := Coerce(t, Schemas[table])
	report.Tables[table].InvalidCells += invalid
	if invalid > 0 {
		c.logger.Info("Nulled cells that do not match their column type",
			zap.String("table", table),
			zap.Int("cells", invalid))
	}
}

// CleanMovies drops movies missing a required value, deduplicates on id and
// imdb_id, normalizes release dates and drops malformed embedded fields.
func (c *Cleaner) CleanMovies(t *tabular.Table, report *Report) *tabular.Table {
	c.coerce(t, Movies, report)
	r := c.recorder(report, Movies)

	t = r.apply(t, StageDropNulls, "required", func(t *tabular.Table) *tabular.Table {
		return DropNulls(t, MovieRequiredColumns...)
	})
	t = r.apply(t, StageDropNulls, "imdb_id", func(t *tabular.Table) *tabular.Table {
		return DropNulls(t, "imdb_id")
	})
	t = r.apply(t, StageUnique, "id", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "id")
	})
	t = r.apply(t, StageUnique, "imdb_id", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "imdb_id")
	})
	t = r.apply(t, StageParseDates, "release_date", func(t *tabular.Table) *tabular.Table {
		return ParseDates(t, "release_date")
	})
	for _, col := range MovieEmbeddedColumns {
		t = r.apply(t, StageFilterEmbedded, col, func(t *tabular.Table) *tabular.Table {
			return FilterEmbedded(t, col)
		})
	}
	return t
}

// CleanCredits deduplicates on id and drops malformed cast or crew values.
func (c *Cleaner) CleanCredits(t *tabular.Table, report *Report) *tabular.Table {
	c.coerce(t, Credits, report)
	r := c.recorder(report, Credits)

	t = r.apply(t, StageUnique, "id", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "id")
	})
	for _, col := range []string{"cast", "crew"} {
		t = r.apply(t, StageFilterEmbedded, col, func(t *tabular.Table) *tabular.Table {
			return FilterEmbedded(t, col)
		})
	}
	return t
}

// CleanKeywords deduplicates on id and drops malformed keyword lists.
func (c *Cleaner) CleanKeywords(t *tabular.Table, report *Report) *tabular.Table {
	c.coerce(t, Keywords, report)
	r := c.recorder(report, Keywords)

	t = r.apply(t, StageUnique, "id", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "id")
	})
	return r.apply(t, StageFilterEmbedded, "keywords", func(t *tabular.Table) *tabular.Table {
		return FilterEmbedded(t, "keywords")
	})
}

// CleanRatings deduplicates on (userId, movieId).
func (c *Cleaner) CleanRatings(t *tabular.Table, report *Report) *tabular.Table {
	c.coerce(t, Ratings, report)
	r := c.recorder(report, Ratings)

	return r.apply(t, StageUnique, "userId,movieId", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "userId", "movieId")
	})
}

// CleanLinks drops incomplete links and keeps movieId and tmdbId unique.
func (c *Cleaner) CleanLinks(t *tabular.Table, report *Report) *tabular.Table {
	c.coerce(t, Links, report)
	r := c.recorder(report, Links)

	t = r.apply(t, StageDropNulls, "all", func(t *tabular.Table) *tabular.Table {
		return DropNulls(t, t.Header()...)
	})
	t = r.apply(t, StageUnique, "tmdbId", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "tmdbId")
	})
	return r.apply(t, StageUnique, "movieId", func(t *tabular.Table) *tabular.Table {
		return Unique(t, "movieId")
	})
}

// Reconcile prunes rows that reference missing rows in another table. It is a
// single one-directional pass, in this order:
//
//  1. movies whose id is in credits.id and in links.tmdbId
//  2. credits whose id is in the movies of step 1
//  3. links whose tmdbId is in the movies of step 1
//  4. ratings whose movieId is in the links of step 3
//  5. keywords whose id is in the tmdbId of the links of step 3
//
// Movies are not filtered again after steps 2 and 3.
func (c *Cleaner) Reconcile(ts *Tables, report *Report) *Tables {
	out := *ts

	r := c.recorder(report, Movies)
	out.Movies = r.apply(ts.Movies, StageReconcile, "credits.id,links.tmdbId", func(t *tabular.Table) *tabular.Table {
		return SemiJoin(t, "id", Intersect(KeySet(ts.Credits, "id"), KeySet(ts.Links, "tmdbId")))
	})
	movieIDs := KeySet(out.Movies, "id")

	r = c.recorder(report, Credits)
	out.Credits = r.apply(ts.Credits, StageReconcile, "movies.id", func(t *tabular.Table) *tabular.Table {
		return SemiJoin(t, "id", movieIDs)
	})

	r = c.recorder(report, Links)
	out.Links = r.apply(ts.Links, StageReconcile, "movies.id", func(t *tabular.Table) *tabular.Table {
		return SemiJoin(t, "tmdbId", movieIDs)
	})

	r = c.recorder(report, Ratings)
	out.Ratings = r.apply(ts.Ratings, StageReconcile, "links.movieId", func(t *tabular.Table) *tabular.Table {
		return SemiJoin(t, "movieId", KeySet(out.Links, "movieId"))
	})

	r = c.recorder(report, Keywords)
	out.Keywords = r.apply(ts.Keywords, StageReconcile, "links.tmdbId", func(t *tabular.Table) *tabular.Table {
		return SemiJoin(t, "id", KeySet(out.Links, "tmdbId"))
	})

	return &out
}
