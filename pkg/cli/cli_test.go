package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/export"
	"github.com/ekaya-inc/mongofilm/pkg/query"
	"github.com/ekaya-inc/mongofilm/pkg/testhelpers"
)

type testEnv struct {
	root    string
	config  string
	results string
	metrics string
}

// newTestEnv writes the small dataset and a config pointing every directory
// into a temp dir.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		root:    root,
		config:  filepath.Join(root, "config.yaml"),
		results: filepath.Join(root, "results"),
		metrics: filepath.Join(root, "metrics.prom"),
	}
	raw := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	testhelpers.SmallDataset().Write(t, raw)

	cfg := fmt.Sprintf(`env: test
data:
  raw_dir: %s
  clean_dir: %s
  results_dir: %s
store:
  type: memory
log:
  level: error
  format: json
metrics:
  textfile_path: %s
`, raw, filepath.Join(root, "clean"), env.results, env.metrics)
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o644))
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{version: "test"}
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func TestRun_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	out, err := execute(t, "run", "--config", env.config)
	require.NoError(t, err, out)
	assert.Contains(t, out, "movies: 3")
	assert.Contains(t, out, "ratings with tmdbId: 3 (100.00%)")

	m, err := export.ReadManifest(filepath.Join(env.results, export.ManifestFile))
	require.NoError(t, err)
	assert.NotEmpty(t, m.RunID)
	assert.Equal(t, "memory", m.Store)
	require.NotNil(t, m.Cleaning)
	require.NotNil(t, m.Load)
	assert.Equal(t, int64(3), m.Load.Movies)
	require.Len(t, m.Queries, len(query.Definitions))
	for _, q := range m.Queries {
		assert.Empty(t, q.Error, q.Name)
		for _, f := range q.Files {
			assert.FileExists(t, filepath.Join(env.results, f))
		}
	}
	assert.FileExists(t, filepath.Join(env.results, "task10_top_variance_users_optimized.csv"))
	assert.FileExists(t, env.metrics)
}

func TestCleanThenProfile(t *testing.T) {
	env := newTestEnv(t)

	out, err := execute(t, "clean", "--config", env.config)
	require.NoError(t, err, out)
	assert.Contains(t, out, "ratings")

	out, err = execute(t, "profile", "links", "--clean", "--config", env.config)
	require.NoError(t, err, out)
	assert.Contains(t, out, "# links (")
	assert.Contains(t, out, "column,type,length,nulls,uniques,repeats,min,max,head")

	out, err = execute(t, "profile", "movies", "--embedded", "genres", "--config", env.config)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Animation")
}

func TestProfile_RejectsUnknownTable(t *testing.T) {
	env := newTestEnv(t)

	_, err := execute(t, "profile", "actors", "--config", env.config)
	assert.Error(t, err)
}

func TestQuery_UnknownName(t *testing.T) {
	env := newTestEnv(t)

	_, err := execute(t, "query", "nope", "--config", env.config)
	assert.ErrorIs(t, err, apperrors.ErrUnknownQuery)
}

func TestStores_ListsBackends(t *testing.T) {
	env := newTestEnv(t)

	out, err := execute(t, "stores", "--config", env.config, "--store", "sqlite")
	require.NoError(t, err)
	for _, s := range []string{"memory", "mongo", "postgres", "sqlite (selected)"} {
		assert.Contains(t, out, s)
	}
}

func TestLoad_SQLiteStore(t *testing.T) {
	env := newTestEnv(t)
	dbPath := filepath.Join(env.root, "films.db")
	t.Setenv("SQLITE_PATH", dbPath)

	_, err := execute(t, "clean", "--config", env.config)
	require.NoError(t, err)

	out, err := execute(t, "load", "--config", env.config, "--store", "sqlite")
	require.NoError(t, err, out)
	assert.Contains(t, out, "movies: 3")
	assert.FileExists(t, dbPath)

	// The file store persists between invocations.
	out, err = execute(t, "query", query.UserStatsQuery, "--config", env.config, "--store", "sqlite")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(env.results, "task10_top_genre_diverse_users_optimized.csv"))
}

func TestInvalidStoreType(t *testing.T) {
	env := newTestEnv(t)

	_, err := execute(t, "load", "--config", env.config, "--store", "cassandra")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
