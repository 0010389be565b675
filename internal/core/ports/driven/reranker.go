package driven

import "context"

// Reranker scores candidate texts against a query with a cross-encoder
// model. Scores are raw relevance values (higher is more relevant),
// one per input text, in input order; callers normalise them before
// blending. Reranking is an optional refinement: callers fall back to
// their fused ordering when it fails.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}
