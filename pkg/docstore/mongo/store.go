// Package mongo stores the movies and ratings collections in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/logging"
	"github.com/ekaya-inc/mongofilm/pkg/models"
	"github.com/ekaya-inc/mongofilm/pkg/retry"
)

// Config contains MongoDB connection options.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	// CursorBatchSize is the number of documents fetched per round trip while scanning.
	CursorBatchSize int32
}

// DefaultDatabase is used when no database is configured.
const DefaultDatabase = "mongofilm"

// FromMap creates a Config from the generic settings map.
func FromMap(settings map[string]any) (*Config, error) {
	uri, err := docstore.StringSetting(settings, "uri", "")
	if err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, fmt.Errorf("uri is required")
	}
	database, err := docstore.StringSetting(settings, "database", DefaultDatabase)
	if err != nil {
		return nil, err
	}
	timeout, err := docstore.DurationSetting(settings, "connect_timeout", 10*time.Second)
	if err != nil {
		return nil, err
	}
	batch, err := docstore.IntSetting(settings, "cursor_batch_size", 1000)
	if err != nil {
		return nil, err
	}
	return &Config{URI: uri, Database: database, ConnectTimeout: timeout, CursorBatchSize: int32(batch)}, nil
}

// Store is a docstore.Store backed by a MongoDB database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	movies  *mongo.Collection
	ratings *mongo.Collection
	cfg     *Config
	logger  *zap.Logger
}

var _ docstore.Store = (*Store)(nil)

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %s", logging.SanitizeError(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping %s: %s",
			logging.SanitizeConnectionString(cfg.URI), logging.SanitizeError(err))
	}

	db := client.Database(cfg.Database)
	logger.Info("Connected to MongoDB",
		zap.String("uri", logging.SanitizeConnectionString(cfg.URI)),
		zap.String("database", cfg.Database))

	return &Store{
		client:  client,
		db:      db,
		movies:  db.Collection(models.MoviesCollection),
		ratings: db.Collection(models.RatingsCollection),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// classify marks network errors and timeouts retryable and maps unique index
// violations to docstore.ErrDuplicateKey.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrDuplicateKey, err)
	case errors.Is(err, context.Canceled):
		return err
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return fmt.Errorf("%s: %w", op, retry.Transient(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) Reset(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.movies, s.ratings} {
		if err := c.Drop(ctx); err != nil {
			return classify("drop "+c.Name(), err)
		}
	}
	s.logger.Info("Dropped collections", zap.String("database", s.cfg.Database))
	return nil
}

func (s *Store) InsertMovies(ctx context.Context, docs []models.MovieDocument) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i := range docs {
		batch[i] = docs[i]
	}
	_, err := s.movies.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	return classify("insert movies", err)
}

func (s *Store) InsertRatings(ctx context.Context, docs []models.RatingDocument) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i := range docs {
		batch[i] = docs[i]
	}
	_, err := s.ratings.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	return classify("insert ratings", err)
}

// movieIndexes and ratingIndexes are the access paths of the load verification
// and the queries. ratings (userId, movieId) also serves the ordered scan.
var (
	movieIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tmdbId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	ratingIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tmdbId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "movieId", Value: 1}}},
		{Keys: bson.D{{Key: "tmdbId", Value: 1}, {Key: "rating", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "movieId", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
)

func (s *Store) EnsureIndexes(ctx context.Context) error {
	start := time.Now()
	names, err := s.movies.Indexes().CreateMany(ctx, movieIndexes)
	if err != nil {
		return classify("create movie indexes", err)
	}
	ratingNames, err := s.ratings.Indexes().CreateMany(ctx, ratingIndexes)
	if err != nil {
		return classify("create rating indexes", err)
	}
	s.logger.Info("Indexes created",
		zap.Strings("movies", names),
		zap.Strings("ratings", ratingNames),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Store) ScanMovies(ctx context.Context, fn func(*models.MovieDocument) error) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "tmdbId", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}}).
		SetBatchSize(s.cfg.CursorBatchSize)

	cur, err := s.movies.Find(ctx, bson.D{}, opts)
	if err != nil {
		return classify("find movies", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var m models.MovieDocument
		if err := cur.Decode(&m); err != nil {
			return fmt.Errorf("decode movie: %w", err)
		}
		if err := fn(&m); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return classify("scan movies", cur.Err())
}

func (s *Store) ScanRatings(ctx context.Context, fn func(*models.RatingDocument) error) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "userId", Value: 1}, {Key: "movieId", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}}).
		SetBatchSize(s.cfg.CursorBatchSize).
		SetAllowDiskUse(true)

	cur, err := s.ratings.Find(ctx, bson.D{}, opts)
	if err != nil {
		return classify("find ratings", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var r models.RatingDocument
		if err := cur.Decode(&r); err != nil {
			return fmt.Errorf("decode rating: %w", err)
		}
		if err := fn(&r); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return classify("scan ratings", cur.Err())
}

func (s *Store) Stats(ctx context.Context) (docstore.Stats, error) {
	var stats docstore.Stats
	var err error

	if stats.Movies, err = s.movies.CountDocuments(ctx, bson.D{}); err != nil {
		return stats, classify("count movies", err)
	}
	if stats.Ratings, err = s.ratings.CountDocuments(ctx, bson.D{}); err != nil {
		return stats, classify("count ratings", err)
	}
	withTMDB := bson.D{{Key: "tmdbId", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}}}
	if stats.RatingsWithTMDB, err = s.ratings.CountDocuments(ctx, withTMDB); err != nil {
		return stats, classify("count ratings with tmdbId", err)
	}
	return stats, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
