package driven

import (
	"context"
	"time"

	"github.com/regsift/regsift/internal/core/domain"
)

// FileState records an ingested source file in the catalog manifest.
// The checksum lets re-ingestion skip files whose content is unchanged.
type FileState struct {
	Path      string
	Vendor    string
	SHA256    string
	Chunks    int
	IndexedAt time.Time
}

// CatalogStats summarises the catalog contents for status reporting.
type CatalogStats struct {
	Files   int
	Chunks  int
	Vendors int
	Devices int
}

// ChunkStore is the durable catalog of ingested chunks. It is the
// system of record: search backends hydrate result text from here, and
// the embedded vector index is rebuilt from it at startup.
type ChunkStore interface {
	// SaveChunks writes chunks and the manifest entry for their source
	// file in one transaction. Existing chunks with the same ID are
	// replaced.
	SaveChunks(ctx context.Context, chunks []domain.Chunk, state FileState) error

	// Chunk returns the chunk with the given ID, or
	// domain.ErrNotFound.
	Chunk(ctx context.Context, id string) (domain.Chunk, error)

	// ChunksBySource returns all chunks that originate from the given
	// source file.
	ChunksBySource(ctx context.Context, sourceFile string) ([]domain.Chunk, error)

	// AllChunks returns every chunk in the catalog. Used to rebuild
	// in-process indexes at startup.
	AllChunks(ctx context.Context) ([]domain.Chunk, error)

	// FileState returns the manifest entry for a source file, or
	// domain.ErrNotFound if the file has never been ingested.
	FileState(ctx context.Context, path string) (FileState, error)

	// DeleteBySource removes all chunks and the manifest entry for the
	// given source file.
	DeleteBySource(ctx context.Context, sourceFile string) error

	// Stats returns catalog-wide counts.
	Stats(ctx context.Context) (CatalogStats, error)

	// Close releases resources.
	Close() error
}
