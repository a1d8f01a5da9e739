package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/mongofilm/pkg/cleaning"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/export"
	"github.com/ekaya-inc/mongofilm/pkg/loader"
	"github.com/ekaya-inc/mongofilm/pkg/query"
	"github.com/ekaya-inc/mongofilm/pkg/tabular"
)

func (a *app) cleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clean and reconcile the raw CSVs into the clean directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.clean(cmd.Context())
			if err != nil {
				return err
			}
			return printCleaningReport(cmd.OutOrStdout(), report)
		},
	}
}

func (a *app) clean(ctx context.Context) (*cleaning.Report, error) {
	return cleaning.NewPipeline(a.cfg.Data, a.metrics, a.logger).Run(ctx)
}

func (a *app) profileCommand() *cobra.Command {
	var (
		clean    bool
		embedded string
	)
	cmd := &cobra.Command{
		Use:       "profile [table...]",
		Short:     "Print a per-column profile of the raw (or clean) tables",
		ValidArgs: cleaning.TableNames,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := args
			if len(tables) == 0 {
				tables = cleaning.TableNames
			}
			if embedded != "" && len(tables) != 1 {
				return fmt.Errorf("--embedded needs exactly one table")
			}

			for _, name := range tables {
				schema := cleaning.Schemas[name]
				dir, file := a.cfg.Data.RawDir, schema.RawFile
				if clean {
					dir, file = a.cfg.Data.CleanDir, schema.CleanFile
				}
				t, err := tabular.ReadCSV(cmd.Context(), name, filepath.Join(dir, file))
				if err != nil {
					return fmt.Errorf("profile %s: %w", name, err)
				}

				var out *tabular.Table
				if embedded != "" {
					if out, err = cleaning.ProfileEmbedded(t, embedded); err != nil {
						return err
					}
				} else {
					out = cleaning.ProfileTable(name, cleaning.Profile(t, schema))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s (%d rows)\n", name, t.Len())
				if err := out.Write(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "profile the clean CSVs instead of the raw ones")
	cmd.Flags().StringVar(&embedded, "embedded", "", "flatten the items of an embedded column instead")
	return cmd
}

func (a *app) loadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the clean CSVs into the document store, replacing its contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			report, err := a.load(cmd.Context(), store)
			if err != nil {
				return err
			}
			printLoadReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func (a *app) load(ctx context.Context, store docstore.Store) (*loader.Report, error) {
	return loader.New(store, a.cfg.Loader, a.metrics, a.logger).Run(ctx, a.cfg.Data.CleanDir)
}

func (a *app) queryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query [name...]",
		Short: "Run analytical queries against the loaded store and export the results",
		Long: "Run the named queries, or all of them, and write one CSV per result table plus a manifest to the results directory.\n\n" +
			"Queries: " + strings.Join(query.Names(), ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			m := a.newManifest()
			return a.query(cmd.Context(), cmd.OutOrStdout(), store, args, m)
		},
	}
}

// query runs the queries, exports their results and writes the manifest.
// It fails when any query failed, after every result has been exported.
func (a *app) query(ctx context.Context, w io.Writer, store docstore.Store, names []string, m *export.Manifest) error {
	engine, err := query.NewEngine(store, a.cfg.Query, a.metrics, a.logger)
	if err != nil {
		return err
	}
	results, err := engine.RunAll(ctx, names)
	if err != nil {
		return err
	}

	exp := export.New(a.cfg.Data.ResultsDir, a.logger)
	if err := exp.WriteResults(m, results); err != nil {
		return err
	}
	m.FinishedAt = time.Now().UTC()
	if _, err := exp.WriteManifest(m); err != nil {
		return err
	}

	failed := printQueryResults(w, results)
	if failed > 0 {
		return errQueriesFailed(failed, len(results))
	}
	return nil
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Clean, load and run every query in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := a.newManifest()

			report, err := a.clean(ctx)
			if err != nil {
				return err
			}
			m.Cleaning = report

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(store)

			if m.Load, err = a.load(ctx, store); err != nil {
				return err
			}
			printLoadReport(cmd.OutOrStdout(), m.Load)

			return a.query(ctx, cmd.OutOrStdout(), store, nil, m)
		},
	}
}

func (a *app) storesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the compiled-in document store backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNAME\tDESCRIPTION")
			for _, s := range docstore.RegisteredStores() {
				marker := ""
				if s.Type == a.cfg.Store.Type {
					marker = " (selected)"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\n", s.Type, marker, s.DisplayName, s.Description)
			}
			return tw.Flush()
		},
	}
}

func (a *app) newManifest() *export.Manifest {
	return &export.Manifest{
		RunID:     a.runID,
		Version:   a.version,
		Store:     a.cfg.Store.Type,
		StartedAt: a.startedAt,
	}
}

func printCleaningReport(w io.Writer, report *cleaning.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tREAD\tMALFORMED\tINVALID CELLS\tWRITTEN")
	for _, name := range cleaning.TableNames {
		t := report.Tables[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, t.Read, t.Malformed, t.InvalidCells, t.Written)
		for _, s := range t.Steps {
			if s.Dropped() == 0 {
				continue
			}
			fmt.Fprintf(tw, "  %s %s\t\t\t-%d\t\n", s.Stage, s.Detail, s.Dropped())
		}
	}
	return tw.Flush()
}

func printLoadReport(w io.Writer, r *loader.Report) {
	fmt.Fprintf(w, "movies: %d\nratings: %d\nratings with tmdbId: %d (%.2f%%)\n",
		r.Movies, r.Ratings, r.RatingsWithTMDB, r.Coverage)
	if r.Sample != "" {
		fmt.Fprintf(w, "sample: %s\n", r.Sample)
	}
}

// printQueryResults prints one line per query and returns the number of
// failed queries.
func printQueryResults(w io.Writer, results []query.Result) int {
	failed := 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tROWS\tELAPSED\tSTATUS")
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			failed++
			status = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Query, r.Rows, r.Elapsed.Round(time.Millisecond), status)
	}
	_ = tw.Flush()
	return failed
}
