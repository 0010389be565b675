package cli

import (
	"bytes"
	"context"
	"errors"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/core/ports/driving"
)

// mockSearchService returns canned results.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockIngestOrchestrator returns a canned summary.
type mockIngestOrchestrator struct {
	summary  domain.RunSummary
	report   domain.FileReport
	err      error
	lastOpts driving.RunOptions
}

func (m *mockIngestOrchestrator) Run(_ context.Context, opts driving.RunOptions) (domain.RunSummary, error) {
	m.lastOpts = opts
	return m.summary, m.err
}

func (m *mockIngestOrchestrator) IngestFile(_ context.Context, path string, opts driving.RunOptions) (domain.FileReport, error) {
	m.lastOpts = opts
	report := m.report
	report.Path = path
	return report, m.err
}

// mockChunkStore only serves Stats; the other methods are unused by
// the CLI.
type mockChunkStore struct {
	stats driven.CatalogStats
	err   error
}

func (m *mockChunkStore) SaveChunks(context.Context, []domain.Chunk, driven.FileState) error {
	return errors.New("not implemented")
}

func (m *mockChunkStore) Chunk(context.Context, string) (domain.Chunk, error) {
	return domain.Chunk{}, domain.ErrNotFound
}

func (m *mockChunkStore) ChunksBySource(context.Context, string) ([]domain.Chunk, error) {
	return nil, nil
}

func (m *mockChunkStore) AllChunks(context.Context) ([]domain.Chunk, error) {
	return nil, nil
}

func (m *mockChunkStore) FileState(context.Context, string) (driven.FileState, error) {
	return driven.FileState{}, domain.ErrNotFound
}

func (m *mockChunkStore) DeleteBySource(context.Context, string) error { return nil }

func (m *mockChunkStore) Stats(context.Context) (driven.CatalogStats, error) {
	return m.stats, m.err
}

func (m *mockChunkStore) Close() error { return nil }

// mockConfigStore is a map-backed config store.
type mockConfigStore struct {
	data map[string]any
	path string
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{data: make(map[string]any), path: "/tmp/regsift/config.toml"}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	s, _ := m.data[key].(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	i, _ := m.data[key].(int)
	return i
}

func (m *mockConfigStore) GetBool(key string) bool {
	b, _ := m.data[key].(bool)
	return b
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string { return m.path }

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			Metadata: domain.ChunkMetadata{
				Vendor:     "STMicro",
				Device:     "STM32F407",
				Peripheral: "GPIOA",
				Register:   "IDR",
				Address:    0x40020010,
			},
			Text:    "GPIO port input data register",
			Snippet: "GPIO port input data register",
			Score:   0.91,
		},
	}
}

// setupTestServices wires mocks into the package-level services and
// returns a cleanup restoring the previous wiring.
func setupTestServices() func() {
	oldSearch := searchService
	oldIngest := ingestOrchestrator
	oldStore := chunkStore
	oldConfig := configStore

	searchService = &mockSearchService{results: sampleResults()}
	ingestOrchestrator = &mockIngestOrchestrator{
		summary: domain.RunSummary{FilesFound: 2, FilesProcessed: 2, RegistersParsed: 40, ChunksIndexed: 40},
	}
	chunkStore = &mockChunkStore{stats: driven.CatalogStats{Files: 2, Chunks: 40, Vendors: 1, Devices: 2}}
	configStore = newMockConfigStore()

	return func() {
		searchService = oldSearch
		ingestOrchestrator = oldIngest
		chunkStore = oldStore
		configStore = oldConfig
	}
}

// execute runs the root command with args and captures its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
