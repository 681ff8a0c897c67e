package sqlbridge

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryNotFound indicates a query key absent from a query file.
	ErrQueryNotFound = errors.New("query not found")

	// ErrNotConnected indicates an operation on an adapter whose pool or
	// connection has not been opened yet.
	ErrNotConnected = errors.New("database not connected")

	// ErrClosed indicates an operation on an adapter after Close.
	ErrClosed = errors.New("database closed")

	// ErrMemoryModeTransaction indicates Begin on a SQLite adapter in
	// memory mode. A transaction opens its own connection, and a fresh
	// connection to an in-memory database sees a separate empty database,
	// so transactions require file-backed storage.
	ErrMemoryModeTransaction = errors.New("transactions require file-backed storage, not memory mode")
)

// QueryError wraps a native database failure with the offending query text
// for diagnostics. The driver error is reachable through errors.Unwrap.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (query: %s)", e.Err, e.Query)
}

// Unwrap returns the underlying driver error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// WrapQueryError attaches query text to a native database error. A nil err
// passes through unchanged.
func WrapQueryError(query string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Query: query, Err: err}
}
