// Package loader moves the clean CSVs into a document store: movies merged
// with their credits and keywords, and ratings resolved to tmdbId through the
// links table.
package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/cleaning"
	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/metrics"
	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/retry"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// Report summarizes a load.
type Report struct {
	Movies          int64          `yaml:"movies" json:"movies"`
	Ratings         int64          `yaml:"ratings" json:"ratings"`
	RatingsWithTMDB int64          `yaml:"ratings_with_tmdb" json:"ratings_with_tmdb"`
	Coverage        float64        `yaml:"coverage_percent" json:"coverage_percent"`
	SkippedRows     int            `yaml:"skipped_rows" json:"skipped_rows"`
	DecodeFailures  map[string]int `yaml:"decode_failures,omitempty" json:"decode_failures,omitempty"`
	Sample          string         `yaml:"sample,omitempty" json:"sample,omitempty"`
	Elapsed         time.Duration  `yaml:"elapsed" json:"elapsed"`
}

// Loader performs full-reload loads into a store.
type Loader struct {
	store   docstore.Store
	cfg     config.LoaderConfig
	retry   *retry.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a Loader. m may be nil.
func New(store docstore.Store, cfg config.LoaderConfig, m *metrics.Metrics, logger *zap.Logger) *Loader {
	l := &Loader{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  logger.Named("loader"),
	}
	if l.cfg.BatchSize <= 0 {
		l.cfg.BatchSize = 1000
	}
	if l.cfg.ChunkSize <= 0 {
		l.cfg.ChunkSize = 5000
	}

	l.retry = retry.DefaultConfig()
	l.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		l.logger.Warn("Retrying store write",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return l
}

// WithRetry replaces the retry policy used for store writes.
func (l *Loader) WithRetry(cfg *retry.Config) *Loader {
	l.retry = cfg
	return l
}

// Run resets the store and loads the clean CSVs found in cleanDir.
//
// Unique indexes are created before the inserts so that a batch retried after
// a partial write fails loudly instead of duplicating documents.
func (l *Loader) Run(ctx context.Context, cleanDir string) (*Report, error) {
	start := time.Now()

	tables, err := cleaning.ReadSources(ctx, cleanDir, func(s cleaning.Schema) string { return s.CleanFile })
	if err != nil {
		return nil, err
	}

	if err := l.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	if err := l.store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	report := &Report{}
	dec := newDecoder()

	movies, skipped := buildMovies(dec, tables)
	report.SkippedRows += skipped
	if err := l.insertMovies(ctx, movies); err != nil {
		return nil, err
	}

	skipped, err = l.loadRatings(ctx, dec, tables.Ratings, dec.linkMap(tables.Links))
	if err != nil {
		return nil, err
	}
	report.SkippedRows += skipped

	if len(dec.failures) > 0 {
		report.DecodeFailures = dec.failures
	}

	if err := l.verify(ctx, report); err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)

	l.logger.Info("Load complete",
		zap.Int64("movies", report.Movies),
		zap.Int64("ratings", report.Ratings),
		zap.Int64("ratings_with_tmdb", report.RatingsWithTMDB),
		zap.Float64("coverage_percent", report.Coverage),
		zap.Int("skipped_rows", report.SkippedRows),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// buildMovies left-joins credits and keywords onto the movies table. Movies
// without a usable id are skipped and counted.
func buildMovies(dec *decoder, tables *cleaning.Tables) ([]models.MovieDocument, int) {
	creds := dec.creditsByID(tables.Credits)
	keywords := dec.keywordsByID(tables.Keywords)

	docs := make([]models.MovieDocument, 0, tables.Movies.Len())
	skipped := 0
	for i := 0; i < tables.Movies.Len(); i++ {
		m, ok := dec.movie(tables.Movies, i)
		if !ok {
			skipped++
			continue
		}
		if c, ok := creds[m.TMDBID]; ok {
			m.Cast = c.cast
			m.Crew = c.crew
		}
		if kw, ok := keywords[m.TMDBID]; ok {
			m.Keywords = kw
		}
		docs = append(docs, m)
	}
	return docs, skipped
}

func (l *Loader) insertMovies(ctx context.Context, docs []models.MovieDocument) error {
	for from := 0; from < len(docs); from += l.cfg.BatchSize {
		batch := docs[from:min(from+l.cfg.BatchSize, len(docs))]
		err := retry.DoIfRetryable(ctx, l.retry, func() error {
			return l.store.InsertMovies(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("insert movies batch at %d: %w", from, err)
		}
		l.metrics.RecordInserted(models.MoviesCollection, len(batch))
	}
	l.logger.Info("Inserted movies", zap.Int("count", len(docs)))
	return nil
}

// loadRatings decodes the ratings table chunk by chunk so that at most one
// chunk of documents is held at a time.
func (l *Loader) loadRatings(ctx context.Context, dec *decoder, t *tabular.Table, links map[int64]int64) (int, error) {
	skipped := 0
	inserted := 0
	for from := 0; from < t.Len(); from += l.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		to := min(from+l.cfg.ChunkSize, t.Len())

		chunk := make([]models.RatingDocument, 0, to-from)
		for i := from; i < to; i++ {
			r, ok := dec.rating(t, i, links)
			if !ok {
				skipped++
				continue
			}
			chunk = append(chunk, r)
		}

		for b := 0; b < len(chunk); b += l.cfg.BatchSize {
			batch := chunk[b:min(b+l.cfg.BatchSize, len(chunk))]
			err := retry.DoIfRetryable(ctx, l.retry, func() error {
				return l.store.InsertRatings(ctx, batch)
			})
			if err != nil {
				return skipped, fmt.Errorf("insert ratings batch at %d: %w", from+b, err)
			}
			l.metrics.RecordInserted(models.RatingsCollection, len(batch))
		}
		inserted += len(chunk)

		l.logger.Debug("Inserted ratings chunk",
			zap.Int("chunk_start", from),
			zap.Int("documents", len(chunk)),
			zap.Int("total", inserted))
	}
	l.logger.Info("Inserted ratings", zap.Int("count", inserted))
	return skipped, nil
}

// verify fills the report with the store's counts and the title of the first
// movie as a sample.
func (l *Loader) verify(ctx context.Context, report *Report) error {
	stats, err := l.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("verify load: %w", err)
	}
	report.Movies = stats.Movies
	report.Ratings = stats.Ratings
	report.RatingsWithTMDB = stats.RatingsWithTMDB
	report.Coverage = stats.Coverage()

	err = l.store.ScanMovies(ctx, func(m *models.MovieDocument) error {
		report.Sample = fmt.Sprintf("%d %s", m.TMDBID, m.Title)
		return docstore.ErrStopScan
	})
	if err != nil {
		return fmt.Errorf("verify load: %w", err)
	}

	if len(report.DecodeFailures) > 0 {
		columns := make([]string, 0, len(report.DecodeFailures))
		for c := range report.DecodeFailures {
			columns = append(columns, c)
		}
		sort.Strings(columns)
		for _, c := range columns {
			l.logger.Warn("Cells failed to decode and were stored as null",
				zap.String("column", c),
				zap.Int("count", report.DecodeFailures[c]))
		}
	}
	return nil
}
