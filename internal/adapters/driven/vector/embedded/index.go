// Package embedded implements the vector index in-process on a vecgo
// HNSW graph. It needs no external service, which keeps the default
// setup to a single binary, at the cost of rebuilding the graph from
// the catalog on startup.
package embedded

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/vecgo"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index wraps a vecgo HNSW graph with the bookkeeping needed to
// address vectors by chunk ID instead of internal graph IDs.
type Index struct {
	mu   sync.RWMutex
	db   *vecgo.Vecgo[string]
	dims int

	// ids maps chunk IDs to graph IDs, meta the reverse direction
	// plus the payload. bySource groups chunk IDs per source file.
	ids      map[string]uint64
	meta     map[uint64]domain.ChunkMetadata
	bySource map[string]map[string]struct{}
}

// NewIndex creates an empty in-memory index for vectors of the given
// dimensionality.
func NewIndex(dims int) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimensions required")
	}

	db, err := vecgo.HNSW[string](dims).Cosine().Build()
	if err != nil {
		return nil, fmt.Errorf("build hnsw graph: %w", err)
	}
	return &Index{
		db:       db,
		dims:     dims,
		ids:      make(map[string]uint64),
		meta:     make(map[uint64]domain.ChunkMetadata),
		bySource: make(map[string]map[string]struct{}),
	}, nil
}

// Load seeds the graph from previously catalogued chunks. Chunks
// without an embedding are skipped.
func (x *Index) Load(ctx context.Context, chunks []domain.Chunk) error {
	records := make([]driven.Record, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		records = append(records, driven.Record{
			ID:       c.ID,
			Vector:   c.Embedding,
			Metadata: c.Metadata,
		})
	}
	if err := x.Upsert(ctx, records); err != nil {
		return fmt.Errorf("load %d vectors: %w", len(records), err)
	}
	logger.Debug("Embedded index: loaded %d vectors", len(records))
	return nil
}

// Upsert inserts records, replacing vectors already present under the
// same chunk ID.
func (x *Index) Upsert(ctx context.Context, records []driven.Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}
		if len(r.Vector) != x.dims {
			return fmt.Errorf("record %q dimension mismatch: expected=%d got=%d",
				r.ID, x.dims, len(r.Vector))
		}

		item := vecgo.VectorWithData[string]{Vector: r.Vector, Data: r.ID}
		id, exists := x.ids[r.ID]
		if exists {
			if err := x.db.Update(ctx, id, item); err != nil {
				return fmt.Errorf("update vector %s: %w", r.ID, err)
			}
			x.detachSource(r.ID, x.meta[id].SourceFile)
		} else {
			var err error
			id, err = x.db.Insert(ctx, item)
			if err != nil {
				return fmt.Errorf("insert vector %s: %w", r.ID, err)
			}
			x.ids[r.ID] = id
		}

		x.meta[id] = r.Metadata
		x.attachSource(r.ID, r.Metadata.SourceFile)
	}
	return nil
}

// Search returns the k nearest vectors, restricted by the filter. The
// filter is applied inside the graph traversal, so k survivors come
// back even when the nearest neighbours are filtered out.
func (x *Index) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, k int) ([]driven.VectorHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if k <= 0 {
		k = 10
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var optFns []func(o *vecgo.KNNSearchOptions)
	if !filter.IsZero() {
		optFns = append(optFns, func(o *vecgo.KNNSearchOptions) {
			o.FilterFunc = func(id uint64) bool {
				m, ok := x.meta[id]
				return ok && filter.Matches(m)
			}
		})
	}

	results, err := x.db.KNNSearch(ctx, vector, k, optFns...)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]driven.VectorHit, 0, len(results))
	for _, r := range results {
		m, ok := x.meta[r.ID]
		if !ok {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ID: r.Data,
			// Cosine distance flipped back to similarity.
			Score:    1 - float64(r.Distance),
			Metadata: m,
		})
	}
	return hits, nil
}

// CountBySource returns how many vectors came from one source file.
func (x *Index) CountBySource(_ context.Context, sourceFile string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.bySource[sourceFile]), nil
}

// DeleteBySource removes all vectors that came from one source file.
func (x *Index) DeleteBySource(ctx context.Context, sourceFile string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for chunkID := range x.bySource[sourceFile] {
		id, ok := x.ids[chunkID]
		if !ok {
			continue
		}
		if err := x.db.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete vector %s: %w", chunkID, err)
		}
		delete(x.ids, chunkID)
		delete(x.meta, id)
	}
	delete(x.bySource, sourceFile)
	return nil
}

// Close releases the graph.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) attachSource(chunkID, sourceFile string) {
	if sourceFile == "" {
		return
	}
	set, ok := x.bySource[sourceFile]
	if !ok {
		set = make(map[string]struct{})
		x.bySource[sourceFile] = set
	}
	set[chunkID] = struct{}{}
}

func (x *Index) detachSource(chunkID, sourceFile string) {
	set, ok := x.bySource[sourceFile]
	if !ok {
		return
	}
	delete(set, chunkID)
	if len(set) == 0 {
		delete(x.bySource, sourceFile)
	}
}
