package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery indicates an empty or malformed search query.
	// Caller error: surfaced immediately, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrSearchUnavailable indicates no search backend could serve the
	// query. Surfaced explicitly so callers can distinguish "no
	// results" from "search failed".
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not
	// configured or unreachable.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// ParseError is a file-local, non-retryable parse failure. The file it
// names contributes zero chunks; the run carries on with the other files.
type ParseError struct {
	// Path is the description file that failed.
	Path string

	// Err is the underlying cause.
	Err error
}

// NewParseError wraps cause as a parse failure for path.
func NewParseError(path string, cause error) *ParseError {
	return &ParseError{Path: path, Err: cause}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is (or wraps) a ParseError.
// Parse errors are deterministic, so retrying them is futile.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
