package driven

import (
	"context"

	"github.com/regsift/regsift/internal/core/domain"
)

// Record is a single entry to store in the vector index. The ID is the
// stable chunk identifier; writing the same ID twice overwrites the
// earlier entry rather than creating a duplicate.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata domain.ChunkMetadata
}

// VectorHit is one nearest-neighbour result from the vector index.
type VectorHit struct {
	ID       string
	Score    float64
	Metadata domain.ChunkMetadata
}

// VectorIndex stores embedded chunks and answers nearest-neighbour
// queries over them.
//
// Implementations may include:
//   - Qdrant over its REST API
//   - An embedded in-process HNSW index
type VectorIndex interface {
	// Upsert writes records into the index. Records with IDs already
	// present are overwritten.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to k hits nearest to the query vector,
	// restricted by the filter, ordered by descending score.
	Search(ctx context.Context, vector []float32, filter domain.SearchFilter, k int) ([]VectorHit, error)

	// CountBySource returns how many records originate from the given
	// source file. Used to decide whether a file can be skipped on
	// re-ingestion.
	CountBySource(ctx context.Context, sourceFile string) (int, error)

	// DeleteBySource removes all records that originate from the given
	// source file. Re-ingestion of a changed file purges the old
	// records first so a shrunken register set leaves no orphans.
	DeleteBySource(ctx context.Context, sourceFile string) error

	// Close releases resources.
	Close() error
}
