// Package query runs the analytical queries over the movies and ratings
// collections. Every query scans the store, reduces the documents through
// the stage helpers, and returns typed, ranked rows that convert to export
// tables.
package query

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/metrics"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
	"github.com/ekaya-inc/mongofilm/pkg/workerpool"
)

// Query names.
const (
	TopDirectorsQuery     = "top_directors"
	ActorPairsQuery       = "actor_pairs"
	GenreBreadthQuery     = "genre_breadth"
	CollectionsQuery      = "collections"
	DecadeRuntimeQuery    = "decade_runtime"
	FemaleProportionQuery = "female_proportion"
	NoirQuery             = "noir"
	DirectorActorQuery    = "director_actor"
	LanguagesQuery        = "languages"
	UserStatsQuery        = "user_stats"
)

// Output is one exportable result table and the file it is written to.
type Output struct {
	File  string
	Table *tabular.Table
}

// Definition describes a runnable query.
type Definition struct {
	Name        string
	Description string
	run         func(ctx context.Context, e *Engine) ([]Output, error)
}

// Definitions lists every query in execution and report order.
var Definitions = []Definition{
	{TopDirectorsQuery, "Directors with the highest median revenue", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.TopDirectors(ctx)
		return single("top_directors.csv", TopDirectorsTable(rows)), err
	}},
	{ActorPairsQuery, "Actor pairs that co-star most often", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.ActorPairs(ctx)
		return single("actor_pairs_costarring.csv", ActorPairsTable(rows)), err
	}},
	{GenreBreadthQuery, "Actors credited across the most genres", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.GenreBreadth(ctx)
		return single("top_actors_genre_breadth.csv", GenreBreadthTable(rows)), err
	}},
	{CollectionsQuery, "Collections by total revenue", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.Collections(ctx)
		return single("task4_collections_by_revenue.csv", CollectionsTable(rows)), err
	}},
	{DecadeRuntimeQuery, "Median runtime by decade and primary genre", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.DecadeRuntime(ctx)
		return single("task5_decade_genre_runtime.csv", DecadeRuntimeTable(rows)), err
	}},
	{FemaleProportionQuery, "Female share of top-billed cast by decade", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.FemaleProportion(ctx)
		return single("task6_female_prop_by_decade.csv", FemaleProportionTable(rows)), err
	}},
	{NoirQuery, "Best rated noir and neo-noir films", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.Noir(ctx)
		return single("task7_noir_top20.csv", NoirTable(rows)), err
	}},
	{DirectorActorQuery, "Director and actor pairs by mean rating", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.DirectorActor(ctx)
		return single("task8_director_actor_pairs.csv", DirectorActorTable(rows)), err
	}},
	{LanguagesQuery, "Non-English original languages of US productions", func(ctx context.Context, e *Engine) ([]Output, error) {
		rows, err := e.Languages(ctx)
		return single("task9_original_languages_us.csv", LanguagesTable(rows)), err
	}},
	{UserStatsQuery, "Users by genre diversity and rating variance", func(ctx context.Context, e *Engine) ([]Output, error) {
		boards, err := e.UserStats(ctx)
		if err != nil {
			return nil, err
		}
		return []Output{
			{File: "task10_top_genre_diverse_users_optimized.csv", Table: UserStatsTable(boards.GenreDiverse)},
			{File: "task10_top_variance_users_optimized.csv", Table: UserStatsTable(boards.Variance)},
		}, nil
	}},
}

func single(file string, t *tabular.Table) []Output {
	return []Output{{File: file, Table: t}}
}

// Lookup returns the definition of a query by name.
func Lookup(name string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Names returns every query name in order.
func Names() []string {
	names := make([]string, len(Definitions))
	for i, d := range Definitions {
		names[i] = d.Name
	}
	return names
}

// Result is the outcome of one query execution.
type Result struct {
	Query   string
	Outputs []Output
	Rows    int
	Elapsed time.Duration
	Err     error
}

// Engine executes queries against a store.
type Engine struct {
	store   docstore.Store
	cfg     config.QueryConfig
	noir    *regexp.Regexp
	pool    *workerpool.Pool
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEngine creates an engine. m may be nil.
func NewEngine(store docstore.Store, cfg config.QueryConfig, m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pattern := cfg.Noir.Pattern
	if !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	noir, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: query.noir.pattern: %v", apperrors.ErrInvalidConfig, err)
	}

	return &Engine{
		store:   store,
		cfg:     cfg,
		noir:    noir,
		pool:    workerpool.New(workerpool.Config{MaxConcurrent: cfg.Concurrency}, logger),
		metrics: m,
		logger:  logger.Named("query-engine"),
	}, nil
}

// Run executes a single query by name.
func (e *Engine) Run(ctx context.Context, name string) Result {
	def, ok := Lookup(name)
	if !ok {
		return Result{Query: name, Err: fmt.Errorf("%w: %s", apperrors.ErrUnknownQuery, name)}
	}
	start := time.Now()
	outputs, err := def.run(ctx, e)
	return e.finish(name, outputs, time.Since(start), err)
}

func (e *Engine) finish(name string, outputs []Output, elapsed time.Duration, err error) Result {
	res := Result{Query: name, Elapsed: elapsed}
	if err != nil {
		res.Err = &apperrors.QueryError{Query: name, Err: err}
		e.metrics.RecordQuery(name, elapsed, 0, err)
		e.logger.Error("Query failed",
			zap.String("query", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return res
	}

	res.Outputs = outputs
	for _, o := range outputs {
		res.Rows += o.Table.Len()
	}
	e.metrics.RecordQuery(name, elapsed, res.Rows, nil)
	e.logger.Info("Query complete",
		zap.String("query", name),
		zap.Int("rows", res.Rows),
		zap.Duration("elapsed", elapsed))
	return res
}

// RunAll executes the named queries, or every query when names is empty,
// through the worker pool. A failed query is reported in its Result and
// does not stop the others. Results are returned in definition order.
func (e *Engine) RunAll(ctx context.Context, names []string) ([]Result, error) {
	if len(names) == 0 {
		names = Names()
	}
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			return nil, fmt.Errorf("%w: %s (known: %s)", apperrors.ErrUnknownQuery, n, strings.Join(Names(), ", "))
		}
	}

	items := make([]workerpool.Item[[]Output], 0, len(names))
	for _, n := range names {
		def, _ := Lookup(n)
		items = append(items, workerpool.Item[[]Output]{
			ID: n,
			Execute: func(ctx context.Context) ([]Output, error) {
				return def.run(ctx, e)
			},
		})
	}

	e.logger.Info("Running queries",
		zap.Strings("queries", names),
		zap.Int("concurrency", e.pool.MaxConcurrent()))

	done := workerpool.Process(ctx, e.pool, items, func(completed, total int) {
		e.logger.Debug("Query progress", zap.Int("completed", completed), zap.Int("total", total))
	})

	results := make([]Result, 0, len(done))
	for _, d := range done {
		results = append(results, e.finish(d.ID, d.Value, d.Elapsed, d.Err))
	}
	order := Names()
	slices.SortFunc(results, func(a, b Result) int {
		return slices.Index(order, a.Query) - slices.Index(order, b.Query)
	})
	return results, nil
}
