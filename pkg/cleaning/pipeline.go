// Package cleaning turns the five raw dataset CSVs into clean CSVs that are
// free of incomplete, duplicate and malformed rows and that reference each
// other consistently.
package cleaning

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/metrics"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

// Pipeline reads the raw sources, cleans and reconciles them, and writes the
// clean outputs.
type Pipeline struct {
	data    config.DataConfig
	cleaner *Cleaner
	logger  *zap.Logger
}

// NewPipeline creates a Pipeline over the configured data directories.
// m may be nil.
func NewPipeline(data config.DataConfig, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		data:    data,
		cleaner: NewCleaner(m, logger),
		logger:  logger.Named("cleaning-pipeline"),
	}
}

// Run executes the full pipeline. Any unreadable source aborts the run with
// an *apperrors.SourceError; row-level problems only drop rows.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := NewReport()

	raw, err := ReadSources(ctx, p.data.RawDir, func(s Schema) string { return s.RawFile })
	if err != nil {
		return nil, err
	}
	for _, name := range TableNames {
		t := raw.Get(name)
		report.Tables[name].Read = t.Len()
		report.Tables[name].Malformed = t.Malformed
		p.logger.Info("Read source",
			zap.String("table", name),
			zap.Int("rows", t.Len()),
			zap.Int("malformed", t.Malformed))
	}

	clean := p.cleaner.CleanAll(raw, report)

	if err := WriteTables(ctx, p.data.CleanDir, clean); err != nil {
		return nil, err
	}
	for _, name := range TableNames {
		report.Tables[name].Written = clean.Get(name).Len()
	}

	p.logger.Info("Cleaning complete",
		zap.String("clean_dir", p.data.CleanDir),
		zap.Int("movies", clean.Movies.Len()),
		zap.Int("credits", clean.Credits.Len()),
		zap.Int("keywords", clean.Keywords.Len()),
		zap.Int("ratings", clean.Ratings.Len()),
		zap.Int("links", clean.Links.Len()),
		zap.Duration("elapsed", time.Since(start)))

	return report, nil
}

// ReadSources reads the five tables from dir in parallel. The first failure
// cancels the remaining reads.
func ReadSources(ctx context.Context, dir string, file func(Schema) string) (*Tables, error) {
	results := make([]*tabular.Table, len(TableNames))

	g, gCtx := errgroup.WithContext(ctx)
	for i, name := range TableNames {
		schema := Schemas[name]
		path := filepath.Join(dir, file(schema))

		g.Go(func() error {
			t, err := tabular.ReadCSV(gCtx, name, path)
			if err != nil {
				return &apperrors.SourceError{Table: name, Path: path, Err: err}
			}
			if missing := schema.MissingColumns(t); len(missing) > 0 {
				return &apperrors.SourceError{
					Table: name,
					Path:  path,
					Err:   fmt.Errorf("missing columns: %s", strings.Join(missing, ", ")),
				}
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ts := &Tables{}
	for i, name := range TableNames {
		ts.Put(name, results[i])
	}
	return ts, nil
}

// WriteTables writes every table to dir under its clean file name.
func WriteTables(ctx context.Context, dir string, ts *Tables) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, name := range TableNames {
		t := ts.Get(name)
		path := filepath.Join(dir, Schemas[name].CleanFile)

		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := t.WriteCSV(path); err != nil {
				return fmt.Errorf("write clean %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
