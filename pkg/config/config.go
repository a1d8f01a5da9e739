package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "config.yaml"

// Config holds all configuration for mongofilm.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (store passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Data    DataConfig    `yaml:"data"`
	Store   StoreConfig   `yaml:"store"`
	Loader  LoaderConfig  `yaml:"loader"`
	Query   QueryConfig   `yaml:"query"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DataConfig locates the CSV inputs and outputs.
type DataConfig struct {
	RawDir     string `yaml:"raw_dir" env:"DATA_RAW_DIR" env-default:"dat/origin"`
	CleanDir   string `yaml:"clean_dir" env:"DATA_CLEAN_DIR" env-default:"dat/clean"`
	ResultsDir string `yaml:"results_dir" env:"DATA_RESULTS_DIR" env-default:"results"`
}

// StoreConfig selects the document store backend and holds per-backend settings.
type StoreConfig struct {
	// Type is one of the registered docstore backends: mongo, postgres, sqlite, memory.
	Type     string         `yaml:"type" env:"STORE_TYPE" env-default:"mongo"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	Host           string        `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
	Port           int           `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	Database       string        `yaml:"database" env:"MONGO_DATABASE" env-default:"mongofilm"`
	User           string        `yaml:"user" env:"MONGO_USER" env-default:""`
	Password       string        `yaml:"-" env:"MONGO_PASSWORD"` // Secret - not in YAML
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
}

// PostgresConfig holds settings for the PostgreSQL JSONB document store.
type PostgresConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"mongofilm"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"mongofilm"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// SQLiteConfig holds settings for the embedded SQLite document store.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"mongofilm.db"`
}

// LoaderConfig controls how clean CSVs are moved into the store.
type LoaderConfig struct {
	BatchSize int `yaml:"batch_size" env:"LOADER_BATCH_SIZE" env-default:"1000"`
	ChunkSize int `yaml:"chunk_size" env:"LOADER_CHUNK_SIZE" env-default:"5000"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// MetricsConfig controls the Prometheus textfile export.
// An empty path disables the export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" env:"METRICS_TEXTFILE_PATH" env-default:""`
}

// QueryConfig holds every threshold and result size used by the analytical queries.
type QueryConfig struct {
	// Concurrency is the number of queries executed at the same time by RunAll.
	Concurrency int `yaml:"concurrency" env:"QUERY_CONCURRENCY" env-default:"4"`

	TopDirectors  TopDirectorsConfig  `yaml:"top_directors"`
	ActorPairs    ActorPairsConfig    `yaml:"actor_pairs"`
	GenreBreadth  GenreBreadthConfig  `yaml:"genre_breadth"`
	Collections   CollectionsConfig   `yaml:"collections"`
	Noir          NoirConfig          `yaml:"noir"`
	DirectorActor DirectorActorConfig `yaml:"director_actor"`
	Languages     LanguagesConfig     `yaml:"languages"`
	UserStats     UserStatsConfig     `yaml:"user_stats"`
}

// TopDirectorsConfig ranks directors by median revenue. Limit 0 exports every
// qualifying director.
type TopDirectorsConfig struct {
	MinMovies int `yaml:"min_movies" env:"QUERY_TOP_DIRECTORS_MIN_MOVIES" env-default:"5"`
	Limit     int `yaml:"limit" env:"QUERY_TOP_DIRECTORS_LIMIT" env-default:"0"`
}

// ActorPairsConfig selects co-starring pairs. Limit 0 exports every pair.
type ActorPairsConfig struct {
	MinMovies     int `yaml:"min_movies" env:"QUERY_ACTOR_PAIRS_MIN_MOVIES" env-default:"3"`
	Limit         int `yaml:"limit" env:"QUERY_ACTOR_PAIRS_LIMIT" env-default:"0"`
	ExampleTitles int `yaml:"example_titles" env:"QUERY_ACTOR_PAIRS_EXAMPLE_TITLES" env-default:"5"`
}

// GenreBreadthConfig ranks actors by the number of distinct genres they played in.
type GenreBreadthConfig struct {
	MinMovies     int `yaml:"min_movies" env:"QUERY_GENRE_BREADTH_MIN_MOVIES" env-default:"10"`
	Limit         int `yaml:"limit" env:"QUERY_GENRE_BREADTH_LIMIT" env-default:"10"`
	ExampleGenres int `yaml:"example_genres" env:"QUERY_GENRE_BREADTH_EXAMPLE_GENRES" env-default:"5"`
}

// CollectionsConfig ranks collections by total revenue.
type CollectionsConfig struct {
	MinMovies int `yaml:"min_movies" env:"QUERY_COLLECTIONS_MIN_MOVIES" env-default:"3"`
	Limit     int `yaml:"limit" env:"QUERY_COLLECTIONS_LIMIT" env-default:"10"`
}

// NoirConfig selects well-voted films whose overview or tagline matches Pattern.
type NoirConfig struct {
	MinVoteCount int    `yaml:"min_vote_count" env:"QUERY_NOIR_MIN_VOTE_COUNT" env-default:"50"`
	Limit        int    `yaml:"limit" env:"QUERY_NOIR_LIMIT" env-default:"20"`
	Pattern      string `yaml:"pattern" env:"QUERY_NOIR_PATTERN" env-default:"\\b(neo-)?noir\\b"`
}

// DirectorActorConfig ranks recurring director and actor collaborations.
type DirectorActorConfig struct {
	MinVoteCount      int `yaml:"min_vote_count" env:"QUERY_DIRECTOR_ACTOR_MIN_VOTE_COUNT" env-default:"100"`
	MinCollaborations int `yaml:"min_collaborations" env:"QUERY_DIRECTOR_ACTOR_MIN_COLLABORATIONS" env-default:"3"`
	Limit             int `yaml:"limit" env:"QUERY_DIRECTOR_ACTOR_LIMIT" env-default:"20"`
	ExampleTitles     int `yaml:"example_titles" env:"QUERY_DIRECTOR_ACTOR_EXAMPLE_TITLES" env-default:"5"`
}

// LanguagesConfig counts original languages of productions from one country.
type LanguagesConfig struct {
	ExcludedLanguage string `yaml:"excluded_language" env:"QUERY_LANGUAGES_EXCLUDED" env-default:"en"`
	CountryCode      string `yaml:"country_code" env:"QUERY_LANGUAGES_COUNTRY_CODE" env-default:"US"`
	CountryName      string `yaml:"country_name" env:"QUERY_LANGUAGES_COUNTRY_NAME" env-default:"United States of America"`
	Limit            int    `yaml:"limit" env:"QUERY_LANGUAGES_LIMIT" env-default:"10"`
}

// UserStatsConfig sizes the two user leaderboards.
type UserStatsConfig struct {
	MinRatingsForVariance int `yaml:"min_ratings_for_variance" env:"QUERY_USER_STATS_MIN_RATINGS" env-default:"20"`
	Limit                 int `yaml:"limit" env:"QUERY_USER_STATS_LIMIT" env-default:"10"`
	ExampleGenres         int `yaml:"example_genres" env:"QUERY_USER_STATS_EXAMPLE_GENRES" env-default:"5"`
}

// DefaultQueryConfig returns the query thresholds used when nothing is configured.
// Keep in sync with the env-default tags above.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		Concurrency:  4,
		TopDirectors: TopDirectorsConfig{MinMovies: 5},
		ActorPairs:   ActorPairsConfig{MinMovies: 3, ExampleTitles: 5},
		GenreBreadth: GenreBreadthConfig{MinMovies: 10, Limit: 10, ExampleGenres: 5},
		Collections:  CollectionsConfig{MinMovies: 3, Limit: 10},
		Noir:         NoirConfig{MinVoteCount: 50, Limit: 20, Pattern: `\b(neo-)?noir\b`},
		DirectorActor: DirectorActorConfig{
			MinVoteCount:      100,
			MinCollaborations: 3,
			Limit:             20,
			ExampleTitles:     5,
		},
		Languages: LanguagesConfig{
			ExcludedLanguage: "en",
			CountryCode:      "US",
			CountryName:      "United States of America",
			Limit:            10,
		},
		UserStats: UserStatsConfig{MinRatingsForVariance: 20, Limit: 10, ExampleGenres: 5},
	}
}

// Load reads configuration from the YAML file at path with environment variable overrides.
// A missing file is not an error: configuration then comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values cleanenv cannot check on its own.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "mongo", "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: store.type %q", apperrors.ErrInvalidConfig, c.Store.Type)
	}

	if c.Loader.BatchSize <= 0 || c.Loader.ChunkSize <= 0 {
		return fmt.Errorf("%w: loader batch_size and chunk_size must be positive", apperrors.ErrInvalidConfig)
	}

	return c.Query.Validate()
}

// Validate rejects non-positive thresholds and result sizes. The top_directors
// and actor_pairs limits are optional: 0 disables them.
func (q *QueryConfig) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"concurrency", q.Concurrency},
		{"top_directors.min_movies", q.TopDirectors.MinMovies},
		{"actor_pairs.min_movies", q.ActorPairs.MinMovies},
		{"genre_breadth.min_movies", q.GenreBreadth.MinMovies},
		{"genre_breadth.limit", q.GenreBreadth.Limit},
		{"collections.min_movies", q.Collections.MinMovies},
		{"collections.limit", q.Collections.Limit},
		{"noir.limit", q.Noir.Limit},
		{"director_actor.min_collaborations", q.DirectorActor.MinCollaborations},
		{"director_actor.limit", q.DirectorActor.Limit},
		{"languages.limit", q.Languages.Limit},
		{"user_stats.limit", q.UserStats.Limit},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%w: query.%s must be positive, got %d", apperrors.ErrInvalidConfig, c.name, c.value)
		}
	}
	if q.TopDirectors.Limit < 0 || q.ActorPairs.Limit < 0 {
		return fmt.Errorf("%w: query top_directors.limit and actor_pairs.limit must not be negative", apperrors.ErrInvalidConfig)
	}
	if q.Noir.Pattern == "" {
		return fmt.Errorf("%w: query.noir.pattern must not be empty", apperrors.ErrInvalidConfig)
	}
	return nil
}

// URI returns the MongoDB connection URI.
// Credentials are only included when both user and password are set.
func (c *MongoConfig) URI() string {
	host := dialHost(c.Host)
	if c.User != "" && c.Password != "" {
		return (&url.URL{
			Scheme: "mongodb",
			User:   url.UserPassword(c.User, c.Password),
			Host:   host + ":" + strconv.Itoa(c.Port),
			Path:   "/" + c.Database,
		}).String()
	}
	return fmt.Sprintf("mongodb://%s:%d/", host, c.Port)
}

// ConnectionString returns a PostgreSQL URL with all user-provided fields escaped.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		dialHost(c.Host),
		c.Port,
		url.QueryEscape(c.Database),
		sslMode,
	)
}

// Settings flattens the selected backend's configuration into the generic map
// consumed by the docstore registry.
func (s *StoreConfig) Settings() map[string]any {
	switch s.Type {
	case "mongo":
		return map[string]any{
			"uri":             s.Mongo.URI(),
			"database":        s.Mongo.Database,
			"connect_timeout": s.Mongo.ConnectTimeout,
		}
	case "postgres":
		return map[string]any{
			"dsn":             s.Postgres.ConnectionString(),
			"max_connections": s.Postgres.MaxConnections,
		}
	case "sqlite":
		return map[string]any{
			"path": s.SQLite.Path,
		}
	default:
		return map[string]any{}
	}
}
