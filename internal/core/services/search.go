package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/core/ports/driving"
	"github.com/regsift/regsift/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

const (
	// defaultLimit is the result count when the caller does not set one.
	defaultLimit = 10

	// candidateMultiplier oversamples each backend so fusion has enough
	// distinct candidates to work with.
	candidateMultiplier = 4

	// rrfK dampens the rank contribution in reciprocal rank fusion.
	rrfK = 60

	// Vector ranks carry more weight than lexical ranks in fusion:
	// embeddings capture the natural-language side of queries, while
	// lexical hits mostly confirm exact mnemonics.
	vectorWeight  = 1.0
	lexicalWeight = 0.8

	snippetLength = 160
)

// scoredChunk holds intermediate results before hydration.
type scoredChunk struct {
	chunkID string
	score   float64
}

// SearchService answers register queries by fusing vector similarity
// and lexical search, with an optional cross-encoder rerank pass.
type SearchService struct {
	chunkStore       driven.ChunkStore
	searchIndex      driven.SearchEngine
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	reranker         driven.Reranker
}

// NewSearchService creates a new search service.
// The reranker is optional (can be nil).
func NewSearchService(
	chunkStore driven.ChunkStore,
	searchIndex driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	reranker driven.Reranker,
) *SearchService {
	return &SearchService{
		chunkStore:       chunkStore,
		searchIndex:      searchIndex,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		reranker:         reranker,
	}
}

// Search performs hybrid search across all indexed registers.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidQuery)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	candidates := limit * candidateMultiplier
	filter := opts.Filter()
	logger.Debug("Limit: %d, candidates per backend: %d, filter: %+v", limit, candidates, filter)

	merged, err := s.hybridSearch(ctx, query, filter, candidates)
	if err != nil {
		return nil, err
	}
	logger.Debug("Fused candidates: %d", len(merged))

	// Prune before reranking: the cross-encoder scores a small window,
	// not the whole candidate pool.
	window := limit * 2
	if window > len(merged) {
		window = len(merged)
	}
	merged = merged[:window]

	results, err := s.hydrateResults(ctx, merged, query, filter)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	if s.reranker != nil && !opts.DisableRerank {
		results = s.rerank(ctx, query, results)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	logger.Info("Final results: %d", len(results))
	return results, nil
}

// hybridSearch runs vector and lexical searches concurrently and fuses
// their rankings. One backend failing degrades to the other; both
// failing is a hard error, never a silent empty list.
func (s *SearchService) hybridSearch(
	ctx context.Context, query string, filter domain.SearchFilter, limit int,
) ([]scoredChunk, error) {
	var lexical, vector []scoredChunk
	var lexicalErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexical, lexicalErr = s.lexicalSearch(ctx, query, filter, limit)
	}()

	go func() {
		defer wg.Done()
		vector, vectorErr = s.vectorSearch(ctx, query, filter, limit)
	}()

	wg.Wait()

	if lexicalErr != nil && vectorErr != nil {
		logger.Warn("Hybrid search: both backends failed")
		return nil, fmt.Errorf("hybrid search: lexical=%v, vector=%v: %w",
			lexicalErr, vectorErr, domain.ErrSearchUnavailable)
	}
	if lexicalErr != nil {
		logger.Warn("Hybrid search: lexical search failed, using vector results only: %v", lexicalErr)
		return vector, nil
	}
	if vectorErr != nil {
		logger.Warn("Hybrid search: vector search failed, using lexical results only: %v", vectorErr)
		return lexical, nil
	}

	logger.Debug("Hybrid search: fusing %d vector + %d lexical results", len(vector), len(lexical))
	return fuseRankings(vector, lexical), nil
}

// lexicalSearch queries the full-text index.
func (s *SearchService) lexicalSearch(
	ctx context.Context, query string, filter domain.SearchFilter, limit int,
) ([]scoredChunk, error) {
	if s.searchIndex == nil {
		return nil, errors.New("search engine unavailable")
	}

	hits, err := s.searchIndex.Search(ctx, query, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	logger.Debug("Lexical search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ID, score: hit.Score}
	}
	return results, nil
}

// vectorSearch embeds the query and queries the vector index.
func (s *SearchService) vectorSearch(
	ctx context.Context, query string, filter domain.SearchFilter, limit int,
) ([]scoredChunk, error) {
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := s.vectorIndex.Search(ctx, embedding, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ID, score: hit.Score}
	}
	return results, nil
}

// fuseRankings merges two ranked lists with weighted reciprocal rank
// fusion. Chunks appearing in both lists accumulate both
// contributions, which deduplicates by chunk ID as a side effect. Ties
// break on chunk ID so the ordering is deterministic across runs.
func fuseRankings(vector, lexical []scoredChunk) []scoredChunk {
	scores := make(map[string]float64)

	for rank, c := range vector {
		scores[c.chunkID] += vectorWeight / float64(rrfK+rank+1)
	}
	for rank, c := range lexical {
		scores[c.chunkID] += lexicalWeight / float64(rrfK+rank+1)
	}

	results := make([]scoredChunk, 0, len(scores))
	for id, score := range scores {
		results = append(results, scoredChunk{chunkID: id, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunkID < results[j].chunkID
	})
	return results
}

// hydrateResults resolves chunk IDs to full results via the catalog.
// Chunks deleted since indexing are skipped, and the metadata filter is
// applied once more as a guard for backends that cannot push it down.
func (s *SearchService) hydrateResults(
	ctx context.Context, chunks []scoredChunk, query string, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	if s.chunkStore == nil {
		return nil, errors.New("chunk store unavailable")
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, sc := range chunks {
		chunk, err := s.chunkStore.Chunk(ctx, sc.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", sc.chunkID, err)
		}
		if !filter.Matches(chunk.Metadata) {
			continue
		}

		results = append(results, domain.SearchResult{
			Metadata: chunk.Metadata,
			Text:     chunk.Text,
			Snippet:  makeSnippet(chunk.Text, query),
			Score:    sc.score,
		})
	}
	return results, nil
}

// rerank rescores results with the cross-encoder and blends the new
// scores with the fused order. Any reranker failure falls back to the
// fused order with a warning; reranking is a refinement, not a
// dependency.
func (s *SearchService) rerank(
	ctx context.Context, query string, results []domain.SearchResult,
) []domain.SearchResult {
	if len(results) == 0 {
		return results
	}

	texts := make([]string, len(results))
	for i := range results {
		texts[i] = results[i].Text
	}

	scores, err := s.reranker.Rerank(ctx, query, texts)
	if err != nil || len(scores) != len(results) {
		logger.Warn("Rerank failed, keeping fused order: %v", err)
		return results
	}

	// Blend equally: half the fused score (normalised to the best
	// candidate), half the cross-encoder relevance.
	maxFused := 0.0
	for i := range results {
		if results[i].Score > maxFused {
			maxFused = results[i].Score
		}
	}

	reranked := make([]domain.SearchResult, len(results))
	copy(reranked, results)
	for i := range reranked {
		fused := 0.0
		if maxFused > 0 {
			fused = reranked[i].Score / maxFused
		}
		reranked[i].Score = 0.5*fused + 0.5*sigmoid(scores[i])
	}

	sort.Slice(reranked, func(i, j int) bool {
		if reranked[i].Score != reranked[j].Score {
			return reranked[i].Score > reranked[j].Score
		}
		return reranked[i].Metadata.Triple() < reranked[j].Metadata.Triple()
	})

	logger.Debug("Reranked %d results", len(reranked))
	return reranked
}

// sigmoid squashes raw cross-encoder logits into (0, 1). Scores that
// already look like probabilities pass through nearly unchanged.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// makeSnippet extracts a short excerpt around the first query-term
// match for terminal display.
func makeSnippet(text, query string) string {
	terms := strings.Fields(strings.ToLower(query))
	lower := strings.ToLower(text)

	pos := -1
	for _, term := range terms {
		if i := strings.Index(lower, term); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}

	start := pos - snippetLength/4
	if start < 0 {
		start = 0
	}
	end := start + snippetLength
	if end > len(text) {
		end = len(text)
	}

	snippet := strings.Join(strings.Fields(text[start:end]), " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return snippet
}
