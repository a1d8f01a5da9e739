// Package cli is the mongofilm command line: cleaning, loading, querying and
// the combined run, over any compiled-in document store.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/config"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/logging"
	"github.com/ekaya-inc/mongofilm/pkg/metrics"

	// Store backends register themselves on import.
	_ "github.com/ekaya-inc/mongofilm/pkg/docstore/memory"
	_ "github.com/ekaya-inc/mongofilm/pkg/docstore/mongo"
	_ "github.com/ekaya-inc/mongofilm/pkg/docstore/postgres"
	_ "github.com/ekaya-inc/mongofilm/pkg/docstore/sqlite"
)

// app is the state shared by every command of one invocation.
type app struct {
	version string

	// Flags.
	configPath string
	storeType  string
	logLevel   string

	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	runID     string
	startedAt time.Time
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context, version string) error {
	a := &app{version: version}
	root := a.rootCommand()
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "mongofilm",
		Short:        "Clean, load and analyze the movies dataset",
		Long:         "mongofilm cleans the raw movie metadata CSVs, loads them into a document store and runs the analytical queries, exporting each result as CSV.",
		Version:      a.version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML config file")
	flags.StringVar(&a.storeType, "store", "", "document store backend (overrides store.type)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")

	root.AddCommand(
		a.cleanCommand(),
		a.profileCommand(),
		a.loadCommand(),
		a.queryCommand(),
		a.runCommand(),
		a.storesCommand(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger and metrics registry.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, a.version)
	if err != nil {
		return err
	}
	if a.storeType != "" {
		cfg.Store.Type = a.storeType
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.runID = uuid.NewString()
	a.startedAt = time.Now().UTC()
	a.logger = logger.With(zap.String("run_id", a.runID))
	a.metrics = metrics.New()

	a.logger.Debug("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("store", cfg.Store.Type),
		zap.String("raw_dir", cfg.Data.RawDir),
		zap.String("clean_dir", cfg.Data.CleanDir),
		zap.String("results_dir", cfg.Data.ResultsDir))
	return nil
}

// openStore opens the configured store. The caller closes it.
func (a *app) openStore(ctx context.Context) (docstore.Store, error) {
	return docstore.Open(ctx, a.cfg.Store.Type, a.cfg.Store.Settings(), a.logger)
}

func (a *app) closeStore(store docstore.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		a.logger.Warn("Failed to close store", zap.Error(err))
	}
}

// close writes the metrics textfile, if configured, and flushes the logger.
func (a *app) close() {
	if a.logger == nil {
		return
	}
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		} else {
			a.logger.Debug("Wrote metrics textfile", zap.String("path", path))
		}
	}
	_ = a.logger.Sync()
}

func errQueriesFailed(failed, total int) error {
	return fmt.Errorf("%d of %d queries failed", failed, total)
}
