// Package sqlite is an embedded document store on SQLite through gorm.
// Movies are kept as JSON text keyed by tmdbId; ratings are a plain table.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds the database file location.
type Config struct {
	Path string
	// InsertBatchSize bounds the rows per INSERT statement.
	InsertBatchSize int
}

// FromMap creates a Config from the generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	path, err := docstore.StringSetting(settings, "path", "")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	batch, err := docstore.IntSetting(settings, "insert_batch_size", 500)
	if err != nil {
		return nil, err
	}
	return &Config{Path: path, InsertBatchSize: batch}, nil
}

type movieRow struct {
	TMDBID int64  `gorm:"column:tmdb_id;primaryKey;autoIncrement:false"`
	Doc    string `gorm:"column:doc;type:text;not null"`
}

func (movieRow) TableName() string { return models.MoviesCollection }

type ratingRow struct {
	UserID    int64   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	MovieID   int64   `gorm:"column:movie_id;primaryKey;autoIncrement:false"`
	TMDBID    *int64  `gorm:"column:tmdb_id"`
	Rating    float64 `gorm:"column:rating;not null"`
	Timestamp int64   `gorm:"column:ts;not null"`
}

func (ratingRow) TableName() string { return models.RatingsCollection }

var ratingIndexes = []struct {
	name string
	ddl  string
}{
	{"ratings_tmdb_id_idx", "CREATE INDEX IF NOT EXISTS ratings_tmdb_id_idx ON ratings (tmdb_id)"},
	{"ratings_user_id_idx", "CREATE INDEX IF NOT EXISTS ratings_user_id_idx ON ratings (user_id)"},
	{"ratings_movie_id_idx", "CREATE INDEX IF NOT EXISTS ratings_movie_id_idx ON ratings (movie_id)"},
	{"ratings_tmdb_id_rating_idx", "CREATE INDEX IF NOT EXISTS ratings_tmdb_id_rating_idx ON ratings (tmdb_id, rating DESC)"},
}

// Store is a docstore.Store backed by a SQLite file.
type Store struct {
	db        *gorm.DB
	batchSize int
	logger    *zap.Logger
}

var _ docstore.Store = (*Store)(nil)

// dsn adds a busy timeout to file databases so concurrent query scans wait
// for the loader's write lock instead of failing.
func dsn(path string) string {
	if path == MemoryPath || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// New opens (or creates) the database and migrates both tables.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Path == MemoryPath {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, batchSize: cfg.InsertBatchSize, logger: logger}
	if s.batchSize <= 0 {
		s.batchSize = 500
	}
	if err := s.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("Opened SQLite store", zap.String("path", cfg.Path))
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&movieRow{}, &ratingRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%s: %w: %s", op, docstore.ErrDuplicateKey, err.Error())
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Reset drops both tables, which also drops their indexes, and recreates them.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Migrator().DropTable(&movieRow{}, &ratingRow{}); err != nil {
		return classify("drop tables", err)
	}
	if err := s.migrate(ctx); err != nil {
		return err
	}
	s.logger.Info("Dropped and recreated movies and ratings")
	return nil
}

func (s *Store) InsertMovies(ctx context.Context, docs []models.MovieDocument) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]movieRow, len(docs))
	for i := range docs {
		doc, err := json.Marshal(&docs[i])
		if err != nil {
			return fmt.Errorf("encode movie %d: %w", docs[i].TMDBID, err)
		}
		rows[i] = movieRow{TMDBID: docs[i].TMDBID, Doc: string(doc)}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, s.batchSize).Error
	})
	return classify("insert movies", err)
}

func (s *Store) InsertRatings(ctx context.Context, docs []models.RatingDocument) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]ratingRow, len(docs))
	for i, r := range docs {
		rows[i] = ratingRow{
			UserID:    r.UserID,
			MovieID:   r.MovieID,
			TMDBID:    r.TMDBID,
			Rating:    r.Rating,
			Timestamp: r.Timestamp,
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, s.batchSize).Error
	})
	return classify("insert ratings", err)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	start := time.Now()
	for _, idx := range ratingIndexes {
		if err := s.db.WithContext(ctx).Exec(idx.ddl).Error; err != nil {
			return classify("create index "+idx.name, err)
		}
	}
	s.logger.Info("Indexes created",
		zap.Int("count", len(ratingIndexes)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Store) ScanMovies(ctx context.Context, fn func(*models.MovieDocument) error) error {
	rows, err := s.db.WithContext(ctx).Model(&movieRow{}).Select("doc").Order("tmdb_id").Rows()
	if err != nil {
		return classify("query movies", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan movie: %w", err)
		}
		var m models.MovieDocument
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return fmt.Errorf("decode movie: %w", err)
		}
		if err := fn(&m); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return classify("scan movies", rows.Err())
}

func (s *Store) ScanRatings(ctx context.Context, fn func(*models.RatingDocument) error) error {
	rows, err := s.db.WithContext(ctx).Model(&ratingRow{}).
		Select("user_id, movie_id, tmdb_id, rating, ts").
		Order("user_id, movie_id").
		Rows()
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
	db := s.db.WithContext(ctx)
	if err := db.Model(&movieRow{}).Count(&stats.Movies).Error; err != nil {
		return stats, classify("count movies", err)
	}
	if err := db.Model(&ratingRow{}).Count(&stats.Ratings).Error; err != nil {
		return stats, classify("count ratings", err)
	}
	if err := db.Model(&ratingRow{}).Where("tmdb_id IS NOT NULL").Count(&stats.RatingsWithTMDB).Error; err != nil {
		return stats, classify("count ratings with tmdbId", err)
	}
	return stats, nil
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
