package services

import (
	"context"
	"sync"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockChunkStore implements driven.ChunkStore for testing.
type mockChunkStore struct {
	mu      sync.Mutex
	chunks  map[string]domain.Chunk
	states  map[string]driven.FileState
	saveErr error
	getErr  error
}

func newMockChunkStore() *mockChunkStore {
	return &mockChunkStore{
		chunks: make(map[string]domain.Chunk),
		states: make(map[string]driven.FileState),
	}
}

func (m *mockChunkStore) SaveChunks(_ context.Context, chunks []domain.Chunk, state driven.FileState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// The real store replaces a file's rows in one transaction.
	for id, c := range m.chunks {
		if c.Metadata.SourceFile == state.Path {
			delete(m.chunks, id)
		}
	}
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	m.states[state.Path] = state
	return nil
}

func (m *mockChunkStore) Chunk(_ context.Context, id string) (domain.Chunk, error) {
	if m.getErr != nil {
		return domain.Chunk{}, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[id]
	if !ok {
		return domain.Chunk{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *mockChunkStore) ChunksBySource(_ context.Context, sourceFile string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Chunk
	for _, c := range m.chunks {
		if c.Metadata.SourceFile == sourceFile {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockChunkStore) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockChunkStore) FileState(_ context.Context, path string) (driven.FileState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[path]
	if !ok {
		return driven.FileState{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockChunkStore) DeleteBySource(_ context.Context, sourceFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.Metadata.SourceFile == sourceFile {
			delete(m.chunks, id)
		}
	}
	delete(m.states, sourceFile)
	return nil
}

func (m *mockChunkStore) Stats(_ context.Context) (driven.CatalogStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return driven.CatalogStats{Files: len(m.states), Chunks: len(m.chunks)}, nil
}

func (m *mockChunkStore) Close() error { return nil }

// mockSearchEngine implements driven.SearchEngine for testing.
type mockSearchEngine struct {
	mu         sync.Mutex
	hits       []driven.SearchHit
	searchErr  error
	indexErr   error
	indexCalls int
	indexed    []domain.Chunk
}

func (m *mockSearchEngine) IndexBatch(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexCalls++
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed = append(m.indexed, chunks...)
	return nil
}

func (m *mockSearchEngine) Search(_ context.Context, _ string, _ domain.SearchFilter, limit int) ([]driven.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

func (m *mockSearchEngine) DeleteBySource(_ context.Context, sourceFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.indexed[:0]
	for _, c := range m.indexed {
		if c.Metadata.SourceFile != sourceFile {
			kept = append(kept, c)
		}
	}
	m.indexed = kept
	return nil
}

func (m *mockSearchEngine) Close() error { return nil }

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	mu          sync.Mutex
	hits        []driven.VectorHit
	searchErr   error
	upsertErr   error
	upsertCalls int
	bySource    map[string]map[string]struct{}
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{bySource: make(map[string]map[string]struct{})}
}

func (m *mockVectorIndex) Upsert(_ context.Context, records []driven.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, r := range records {
		ids := m.bySource[r.Metadata.SourceFile]
		if ids == nil {
			ids = make(map[string]struct{})
			m.bySource[r.Metadata.SourceFile] = ids
		}
		ids[r.ID] = struct{}{}
	}
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, _ domain.SearchFilter, k int) ([]driven.VectorHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorIndex) CountBySource(_ context.Context, sourceFile string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bySource[sourceFile]), nil
}

func (m *mockVectorIndex) DeleteBySource(_ context.Context, sourceFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bySource, sourceFile)
	return nil
}

func (m *mockVectorIndex) Close() error { return nil }

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	mu         sync.Mutex
	dims       int
	embedErr   error
	failFirst  int
	batchCalls int
	embedCalls int
}

func (m *mockEmbeddingService) vector() []float32 {
	dims := m.dims
	if dims == 0 {
		dims = 4
	}
	return make([]float32, dims)
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.failFirst > 0 {
		m.failFirst--
		return nil, errTransient
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.vector()
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 4
}

func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

// mockReranker implements driven.Reranker for testing.
type mockReranker struct {
	scores []float64
	err    error
	calls  int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, texts []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.scores != nil {
		return m.scores, nil
	}
	return make([]float64, len(texts)), nil
}
