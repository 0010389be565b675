package driven

import (
	"context"

	"github.com/regsift/regsift/internal/core/domain"
)

// SearchHit is one result from the lexical search engine.
type SearchHit struct {
	ID    string
	Score float64
}

// SearchEngine provides full-text (lexical) indexing and retrieval over
// chunk text. It complements the vector index: exact register names and
// acronyms that embeddings blur are matched here.
type SearchEngine interface {
	// IndexBatch adds or replaces chunks in the full-text index.
	IndexBatch(ctx context.Context, chunks []domain.Chunk) error

	// Search returns up to limit hits matching the query, restricted by
	// the filter, ordered by descending score.
	Search(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]SearchHit, error)

	// DeleteBySource removes all chunks that originate from the given
	// source file.
	DeleteBySource(ctx context.Context, sourceFile string) error

	// Close releases resources.
	Close() error
}
