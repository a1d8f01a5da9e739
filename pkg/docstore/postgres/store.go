// Package postgres stores the movies collection as JSONB documents and the
// ratings collection as a plain table in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/logging"
	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/retry"
)

// Config holds connection pool configuration.
type Config struct {
	DSN             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FromMap creates a Config from the generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	dsn, err := docstore.StringSetting(settings, "dsn", "")
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	maxConns, err := docstore.IntSetting(settings, "max_connections", 10)
	if err != nil {
		return nil, err
	}
	return &Config{DSN: dsn, MaxConnections: int32(maxConns)}, nil
}

// Store is a docstore.Store backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ docstore.Store = (*Store)(nil)

// pingRetry covers a server that is still starting, as in a fresh container.
var pingRetry = &retry.Config{
	MaxRetries:   4,
	InitialDelay: 250 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2,
	JitterFactor: 0.1,
}

// New creates the connection pool and applies pending migrations.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %s", logging.SanitizeError(err))
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %s", logging.SanitizeError(err))
	}
	if err := retry.Do(ctx, pingRetry, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %s", logging.SanitizeError(err))
	}

	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open sql connection: %s", logging.SanitizeError(err))
	}
	defer sqlDB.Close()

	if err := RunMigrations(sqlDB, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("dsn", logging.SanitizeConnectionString(cfg.DSN)),
		zap.Int32("max_connections", poolConfig.MaxConns))
	return &Store{pool: pool, logger: logger}, nil
}

// classify maps unique violations to docstore.ErrDuplicateKey and marks
// errors that are safe to retry.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: %s", op, docstore.ErrDuplicateKey, pgErr.Detail)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w", op, retry.Transient(err))
		}
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w", op, retry.Transient(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// secondaryIndexes mirror the MongoDB ratings indexes. The primary keys
// cover movies.tmdbId and ratings (userId, movieId).
var secondaryIndexes = []struct {
	name string
	ddl  string
}{
	{"ratings_tmdb_id_idx", "CREATE INDEX IF NOT EXISTS ratings_tmdb_id_idx ON ratings (tmdb_id)"},
	{"ratings_user_id_idx", "CREATE INDEX IF NOT EXISTS ratings_user_id_idx ON ratings (user_id)"},
	{"ratings_movie_id_idx", "CREATE INDEX IF NOT EXISTS ratings_movie_id_idx ON ratings (movie_id)"},
	{"ratings_tmdb_id_rating_idx", "CREATE INDEX IF NOT EXISTS ratings_tmdb_id_rating_idx ON ratings (tmdb_id, rating DESC)"},
}

func (s *Store) Reset(ctx context.Context) error {
	for _, idx := range secondaryIndexes {
		if _, err := s.pool.Exec(ctx, "DROP INDEX IF EXISTS "+idx.name); err != nil {
			return classify("drop index "+idx.name, err)
		}
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE movies, ratings"); err != nil {
		return classify("truncate", err)
	}
	s.logger.Info("Truncated movies and ratings")
	return nil
}

func (s *Store) InsertMovies(ctx context.Context, docs []models.MovieDocument) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"movies"},
		[]string{"tmdb_id", "doc"},
		pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
			doc, err := json.Marshal(&docs[i])
			if err != nil {
				return nil, fmt.Errorf("encode movie %d: %w", docs[i].TMDBID, err)
			}
			return []any{docs[i].TMDBID, doc}, nil
		}))
	return classify("insert movies", err)
}

func (s *Store) InsertRatings(ctx context.Context, docs []models.RatingDocument) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"ratings"},
		[]string{"user_id", "movie_id", "tmdb_id", "rating", "ts"},
		pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
			r := &docs[i]
			return []any{r.UserID, r.MovieID, r.TMDBID, r.Rating, r.Timestamp}, nil
		}))
	return classify("insert ratings", err)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	start := time.Now()
	for _, idx := range secondaryIndexes {
		if _, err := s.pool.Exec(ctx, idx.ddl); err != nil {
			return classify("create index "+idx.name, err)
		}
	}
	s.logger.Info("Indexes created",
		zap.Int("count", len(secondaryIndexes)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Store) ScanMovies(ctx context.Context, fn func(*models.MovieDocument) error) error {
	rows, err := s.pool.Query(ctx, "SELECT doc FROM movies ORDER BY tmdb_id")
	if err != nil {
		return classify("query movies", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan movie: %w", err)
		}
		var m models.MovieDocument
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode movie: %w", err)
		}
		if err := fn(&m); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return classify("scan movies", rows.Err())
}

func (s *Store) ScanRatings(ctx context.Context, fn func(*models.RatingDocument) error) error {
	rows, err := s.pool.Query(ctx,
		"SELECT user_id, movie_id, tmdb_id, rating, ts FROM ratings ORDER BY user_id, movie_id")
	if err != nil {
		return classify("query ratings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.RatingDocument
		if err := rows.Scan(&r.UserID, &r.MovieID, &r.TMDBID, &r.Rating, &r.Timestamp); err != nil {
			return fmt.Errorf("scan rating: %w", err)
		}
		if err := fn(&r); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return classify("scan ratings", rows.Err())
}

func (s *Store) Stats(ctx context.Context) (docstore.Stats, error) {
	var stats docstore.Stats
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM movies").Scan(&stats.Movies); err != nil {
		return stats, classify("count movies", err)
	}
	err := s.pool.QueryRow(ctx, "SELECT count(*), count(tmdb_id) FROM ratings").
		Scan(&stats.Ratings, &stats.RatingsWithTMDB)
	if err != nil {
		return stats, classify("count ratings", err)
	}
	return stats, nil
}

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
