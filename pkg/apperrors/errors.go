package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSourceUnreadable  = errors.New("source unreadable")
	ErrQueryExecution    = errors.New("query execution failed")
	ErrUnsupportedStore  = errors.New("unsupported store type")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownQuery      = errors.New("unknown query")
	ErrStoreNotConnected = errors.New("store not connected")
)

// SourceError reports a raw or clean CSV that could not be read.
// It aborts the run that owns it.
type SourceError struct {
	Table string
	Path  string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("read %s source %q: %v", e.Table, e.Path, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnreadable, e.Err}
}

// QueryError reports a failed analytical query. Other queries in the same
// run are unaffected.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() []error {
	return []error{ErrQueryExecution, e.Err}
}
