package apperrors

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceError_MatchesSentinelAndCause(t *testing.T) {
	err := error(&SourceError{Table: "movies", Path: "/tmp/movies_metadata.csv", Err: fs.ErrNotExist})

	assert.ErrorIs(t, err, ErrSourceUnreadable)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrQueryExecution)
	assert.Contains(t, err.Error(), "movies")
	assert.Contains(t, err.Error(), "movies_metadata.csv")
}

func TestQueryError_MatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("cursor closed")
	err := error(&QueryError{Query: "top_directors", Err: cause})

	assert.ErrorIs(t, err, ErrQueryExecution)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "query top_directors: cursor closed", err.Error())

	var qe *QueryError
	assert.True(t, errors.As(err, &qe))
	assert.Equal(t, "top_directors", qe.Query)
}
