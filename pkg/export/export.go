// Package export writes query results to the results directory as CSV files
// and records each run in a manifest.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/mongofilm/pkg/cleaning"
	"github.com/ekaya-inc/mongofilm/pkg/loader"
	"github.com/ekaya-inc/mongofilm/pkg/query"
)

// ManifestFile is the manifest's file name inside the results directory.
const ManifestFile = "manifest.yaml"

// QueryEntry records one query of a run.
type QueryEntry struct {
	Name     string        `yaml:"name"`
	Files    []string      `yaml:"files,omitempty"`
	Rows     int           `yaml:"rows"`
	Duration time.Duration `yaml:"duration"`
	Error    string        `yaml:"error,omitempty"`
}

// Manifest describes a run: what was cleaned, loaded and queried, and where
// the result files are.
type Manifest struct {
	RunID      string           `yaml:"run_id"`
	Version    string           `yaml:"version,omitempty"`
	Store      string           `yaml:"store"`
	StartedAt  time.Time        `yaml:"started_at"`
	FinishedAt time.Time        `yaml:"finished_at"`
	Cleaning   *cleaning.Report `yaml:"cleaning,omitempty"`
	Load       *loader.Report   `yaml:"load,omitempty"`
	Queries    []QueryEntry     `yaml:"queries,omitempty"`
}

// Exporter writes result tables and manifests into one directory.
type Exporter struct {
	dir    string
	logger *zap.Logger
}

// New creates an Exporter writing into dir.
func New(dir string, logger *zap.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger.Named("export")}
}

// Dir returns the results directory.
func (e *Exporter) Dir() string { return e.dir }

// WriteResults writes every output of the successful results and appends one
// entry per result to the manifest. Failed queries are recorded with their
// error and write no file.
func (e *Exporter) WriteResults(m *Manifest, results []query.Result) error {
	for _, res := range results {
		entry := QueryEntry{Name: res.Query, Rows: res.Rows, Duration: res.Elapsed}
		if res.Err != nil {
			entry.Error = res.Err.Error()
			m.Queries = append(m.Queries, entry)
			continue
		}

		for _, out := range res.Outputs {
			path := filepath.Join(e.dir, out.File)
			if err := out.Table.WriteCSV(path); err != nil {
				return fmt.Errorf("write %s: %w", out.File, err)
			}
			entry.Files = append(entry.Files, out.File)
			e.logger.Info("Exported results",
				zap.String("query", res.Query),
				zap.String("path", path),
				zap.Int("rows", out.Table.Len()))
		}
		m.Queries = append(m.Queries, entry)
	}
	return nil
}

// WriteManifest writes m to the results directory. The file is replaced
// atomically so a reader never sees a partial manifest.
func (e *Exporter) WriteManifest(m *Manifest) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(e.dir, ManifestFile)
	tmp, err := os.CreateTemp(e.dir, ManifestFile+".*")
	if err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write manifest: %w", err)
	}

	e.logger.Info("Wrote manifest", zap.String("path", path), zap.String("run_id", m.RunID))
	return path, nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
