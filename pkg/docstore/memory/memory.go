// Package memory is an in-process document store. It keeps both collections
// in maps and serves small datasets, tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/mongofilm/pkg/apperrors"
	"github.com/ekaya-inc/mongofilm/pkg/docstore"
	"github.com/ekaya-inc/mongofilm/pkg/models"
)

type ratingKey struct {
	userID  int64
	movieID int64
}

// Store is the in-memory document store.
type Store struct {
	mu         sync.RWMutex
	closed     bool
	movies     map[int64]models.MovieDocument
	ratings    []models.RatingDocument
	ratingKeys map[ratingKey]struct{}
	indexed    bool
	logger     *zap.Logger
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	return &Store{
		movies:     make(map[int64]models.MovieDocument),
		ratingKeys: make(map[ratingKey]struct{}),
		logger:     logger,
	}
}

func (s *Store) checkOpen() error {
	if s.closed {
		return apperrors.ErrStoreNotConnected
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	s.movies = make(map[int64]models.MovieDocument)
	s.ratings = nil
	s.ratingKeys = make(map[ratingKey]struct{})
	s.indexed = false
	s.logger.Debug("Collections reset")
	return nil
}

// InsertMovies inserts the batch atomically: a duplicate tmdbId rejects the
// whole batch.
func (s *Store) InsertMovies(ctx context.Context, docs []models.MovieDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	batch := make(map[int64]struct{}, len(docs))
	for i := range docs {
		id := docs[i].TMDBID
		_, exists := s.movies[id]
		_, repeated := batch[id]
		if exists || repeated {
			return fmt.Errorf("%w: movies.tmdbId %d", docstore.ErrDuplicateKey, id)
		}
		batch[id] = struct{}{}
	}
	for _, d := range docs {
		s.movies[d.TMDBID] = d
	}
	return nil
}

// InsertRatings inserts the batch atomically: a duplicate (userId, movieId)
// rejects the whole batch.
func (s *Store) InsertRatings(ctx context.Context, docs []models.RatingDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	batch := make(map[ratingKey]struct{}, len(docs))
	for _, d := range docs {
		k := ratingKey{d.UserID, d.MovieID}
		_, exists := s.ratingKeys[k]
		_, repeated := batch[k]
		if exists || repeated {
			return fmt.Errorf("%w: ratings (userId %d, movieId %d)", docstore.ErrDuplicateKey, d.UserID, d.MovieID)
		}
		batch[k] = struct{}{}
	}
	for k := range batch {
		s.ratingKeys[k] = struct{}{}
	}
	s.ratings = append(s.ratings, docs...)
	return nil
}

// EnsureIndexes only records that indexes were requested; map lookups
// already serve every access path.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.indexed = true
	return nil
}

// Indexed reports whether EnsureIndexes has been called since the last Reset.
func (s *Store) Indexed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexed
}

func (s *Store) ScanMovies(ctx context.Context, fn func(*models.MovieDocument) error) error {
	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return err
	}
	docs := make([]models.MovieDocument, 0, len(s.movies))
	for _, d := range s.movies {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].TMDBID < docs[j].TMDBID })
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&docs[i]); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return nil
}

func (s *Store) ScanRatings(ctx context.Context, fn func(*models.RatingDocument) error) error {
	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return err
	}
	docs := make([]models.RatingDocument, len(s.ratings))
	copy(docs, s.ratings)
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UserID != docs[j].UserID {
			return docs[i].UserID < docs[j].UserID
		}
		return docs[i].MovieID < docs[j].MovieID
	})
	for i := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(&docs[i]); err != nil {
			return docstore.StopScanOK(err)
		}
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (docstore.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return docstore.Stats{}, err
	}

	stats := docstore.Stats{
		Movies:  int64(len(s.movies)),
		Ratings: int64(len(s.ratings)),
	}
	for _, r := range s.ratings {
		if r.TMDBID != nil {
			stats.RatingsWithTMDB++
		}
	}
	return stats, nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
