// Package bleve implements the lexical search engine on a Bleve
// full-text index. It complements the vector index with exact matches
// on register mnemonics and acronyms that embeddings tend to blur.
package bleve

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/logger"
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

// deleteBatchSize pages DeleteBySource lookups.
const deleteBatchSize = 500

// chunkDoc is the shape indexed per chunk. Identifier fields use the
// keyword analyzer so filters match them verbatim.
type chunkDoc struct {
	Text       string `json:"text"`
	Vendor     string `json:"vendor"`
	Device     string `json:"device"`
	Peripheral string `json:"peripheral"`
	Register   string `json:"register"`
	Source     string `json:"source"`
}

// Engine is the Bleve-backed lexical search engine.
type Engine struct {
	index bleve.Index
	path  string
}

// New opens the index at path, creating it on first use.
func New(path string) (*Engine, error) {
	var index bleve.Index
	var err error

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		index, err = bleve.New(path, indexMapping())
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Engine{index: index, path: path}, nil
}

// NewInMemory creates a throwaway in-memory index, used in tests.
func NewInMemory() (*Engine, error) {
	index, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}
	return &Engine{index: index}, nil
}

func indexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("vendor", exact)
	doc.AddFieldMappingsAt("device", exact)
	doc.AddFieldMappingsAt("peripheral", exact)
	doc.AddFieldMappingsAt("register", exact)
	doc.AddFieldMappingsAt("source", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// IndexBatch adds or replaces chunks in the index.
func (e *Engine) IndexBatch(_ context.Context, chunks []domain.Chunk) error {
	batch := e.index.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{
			Text:       c.Text,
			Vendor:     c.Metadata.Vendor,
			Device:     c.Metadata.Device,
			Peripheral: c.Metadata.Peripheral,
			Register:   c.Metadata.Register,
			Source:     c.Metadata.SourceFile,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("batch chunk %s: %w", c.ID, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// Search returns up to limit hits for the query, restricted by the
// filter, ordered by descending score.
func (e *Engine) Search(ctx context.Context, q string, filter domain.SearchFilter, limit int) ([]driven.SearchHit, error) {
	match := bleve.NewMatchQuery(q)
	match.SetField("text")

	// An exact mnemonic match on the register name outranks a mention
	// buried in a description.
	register := bleve.NewMatchQuery(q)
	register.SetField("register")
	register.SetBoost(2.0)

	var full query.Query = bleve.NewDisjunctionQuery(match, register)
	if !filter.IsZero() {
		conj := bleve.NewConjunctionQuery(full)
		if filter.Vendor != "" {
			tq := bleve.NewTermQuery(filter.Vendor)
			tq.SetField("vendor")
			conj.AddQuery(tq)
		}
		if filter.Device != "" {
			tq := bleve.NewTermQuery(filter.Device)
			tq.SetField("device")
			conj.AddQuery(tq)
		}
		full = conj
	}

	req := bleve.NewSearchRequestOptions(full, limit, 0, false)
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]driven.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, driven.SearchHit{ID: h.ID, Score: h.Score})
	}
	logger.Debug("Bleve: %d hits for %q", len(hits), q)
	return hits, nil
}

// DeleteBySource removes all chunks indexed from one source file.
func (e *Engine) DeleteBySource(ctx context.Context, sourceFile string) error {
	tq := bleve.NewTermQuery(sourceFile)
	tq.SetField("source")

	for {
		req := bleve.NewSearchRequestOptions(tq, deleteBatchSize, 0, false)
		res, err := e.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("find chunks for %s: %w", sourceFile, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := e.index.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := e.index.Batch(batch); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
	}
}

// Close closes the underlying index.
func (e *Engine) Close() error {
	return e.index.Close()
}
