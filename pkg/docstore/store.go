// Package docstore is the boundary between mongofilm and the document
// database that holds the movies and ratings collections.
//
// Backends register themselves from init() and are opened by type name, so
// the loader and the query engine never depend on a concrete driver.
package docstore

import (
	"context"
	"errors"

	"github.com/ekaya-inc/mongofilm/pkg/models"
)

// ErrStopScan may be returned by a scan callback to end the scan early.
// The scan then returns nil.
var ErrStopScan = errors.New("stop scan")

// ErrDuplicateKey is returned when an insert violates a unique key:
// movies.tmdbId or ratings (userId, movieId).
var ErrDuplicateKey = errors.New("duplicate key")

// Stats are the collection counts used to verify a load.
type Stats struct {
	Movies          int64 `json:"movies" yaml:"movies"`
	Ratings         int64 `json:"ratings" yaml:"ratings"`
	RatingsWithTMDB int64 `json:"ratings_with_tmdb" yaml:"ratings_with_tmdb"`
}

// Coverage is the percentage of ratings that resolved to a tmdbId.
func (s Stats) Coverage() float64 {
	if s.Ratings == 0 {
		return 0
	}
	return float64(s.RatingsWithTMDB) / float64(s.Ratings) * 100
}

// Store is a document store with a movies and a ratings collection.
type Store interface {
	// Reset drops both collections and their indexes.
	Reset(ctx context.Context) error

	// InsertMovies inserts one batch of movie documents.
	InsertMovies(ctx context.Context, docs []models.MovieDocument) error

	// InsertRatings inserts one batch of rating documents.
	InsertRatings(ctx context.Context, docs []models.RatingDocument) error

	// EnsureIndexes creates the collection indexes. It is idempotent.
	EnsureIndexes(ctx context.Context) error

	// ScanMovies calls fn for every movie in ascending tmdbId order.
	ScanMovies(ctx context.Context, fn func(*models.MovieDocument) error) error

	// ScanRatings calls fn for every rating ordered by (userId, movieId),
	// regardless of insertion order. All ratings of one user are therefore
	// contiguous, which per-user streaming folds rely on.
	ScanRatings(ctx context.Context, fn func(*models.RatingDocument) error) error

	// Stats counts the documents in both collections.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}

// StopScanOK maps ErrStopScan, returned by a callback that ended a scan
// early, to nil.
func StopScanOK(err error) error {
	if errors.Is(err, ErrStopScan) {
		return nil
	}
	return err
}

// CollectMovies reads every movie into memory. Intended for small stores
// and tests.
func CollectMovies(ctx context.Context, s Store) ([]models.MovieDocument, error) {
	var out []models.MovieDocument
	err := s.ScanMovies(ctx, func(m *models.MovieDocument) error {
		out = append(out, *m)
		return nil
	})
	return out, err
}

// CollectRatings reads every rating into memory. Intended for small stores
// and tests.
func CollectRatings(ctx context.Context, s Store) ([]models.RatingDocument, error) {
	var out []models.RatingDocument
	err := s.ScanRatings(ctx, func(r *models.RatingDocument) error {
		out = append(out, *r)
		return nil
	})
	return out, err
}
