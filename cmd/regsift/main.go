// Command regsift indexes SVD register descriptions and answers
// hybrid lexical plus semantic queries over them.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/regsift/regsift/internal/adapters/driven/catalog/sqlite"
	configfile "github.com/regsift/regsift/internal/adapters/driven/config/file"
	ollamaembed "github.com/regsift/regsift/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/regsift/regsift/internal/adapters/driven/embedding/openai"
	"github.com/regsift/regsift/internal/adapters/driven/rerank/tei"
	"github.com/regsift/regsift/internal/adapters/driven/search/bleve"
	"github.com/regsift/regsift/internal/adapters/driven/vector/embedded"
	"github.com/regsift/regsift/internal/adapters/driven/vector/qdrant"
	"github.com/regsift/regsift/internal/adapters/driving/cli"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/core/services"
	"github.com/regsift/regsift/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const defaultQdrantCollection = "regsift"

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}

	dataDir, err := resolveDataDir(configStore)
	if err != nil {
		return err
	}

	catalogStore, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer catalogStore.Close()

	searchEngine, err := bleve.New(filepath.Join(dataDir, "lexical.bleve"))
	if err != nil {
		return fmt.Errorf("open search index: %w", err)
	}
	defer searchEngine.Close()

	embedder, err := buildEmbedder(configStore)
	if err != nil {
		return err
	}
	defer embedder.Close()

	vectorIndex, err := buildVectorIndex(configStore, embedder.Dimensions(), catalogStore)
	if err != nil {
		return err
	}
	defer vectorIndex.Close()

	cli.SetServices(cli.Services{
		Search:  services.NewSearchService(catalogStore, searchEngine, vectorIndex, embedder, buildReranker(configStore)),
		Ingest:  services.NewIngestService(catalogStore, searchEngine, vectorIndex, embedder),
		Catalog: catalogStore,
		Config:  configStore,
	})
	cli.SetVersion(version)

	return cli.Execute()
}

// resolveDataDir returns the directory holding the catalog database
// and lexical index, creating it if needed. Defaults to
// ~/.regsift/data next to the config file.
func resolveDataDir(cfg driven.ConfigStore) (string, error) {
	dir := cfg.GetString("data.dir")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".regsift", "data")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// buildEmbedder selects the embedding provider. OpenAI is used when
// explicitly configured or when an API key is present; otherwise a
// local Ollama server is assumed.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString("embedding.provider")
	apiKey := os.Getenv("OPENAI_API_KEY")
	if provider == "" {
		if apiKey != "" {
			provider = "openai"
		} else {
			provider = "ollama"
		}
	}

	switch provider {
	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.GetString("openai.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.GetString("ollama.url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (expected openai or ollama)", provider)
	}
}

// buildVectorIndex selects the vector backend. The embedded HNSW index
// lives in process memory and is rebuilt from the catalog at startup;
// Qdrant keeps its own persistent copy.
func buildVectorIndex(cfg driven.ConfigStore, dims int, catalog driven.ChunkStore) (driven.VectorIndex, error) {
	backend := cfg.GetString("vector.backend")
	if backend == "" {
		backend = "embedded"
	}

	switch backend {
	case "embedded":
		idx, err := embedded.NewIndex(dims)
		if err != nil {
			return nil, fmt.Errorf("create vector index: %w", err)
		}
		chunks, err := catalog.AllChunks(context.Background())
		if err != nil {
			return nil, fmt.Errorf("read catalog for vector index: %w", err)
		}
		if err := idx.Load(context.Background(), chunks); err != nil {
			return nil, fmt.Errorf("load vector index: %w", err)
		}
		return idx, nil
	case "qdrant":
		url := cfg.GetString("qdrant.url")
		if url == "" {
			url = "http://localhost:6333"
		}
		collection := cfg.GetString("qdrant.collection")
		if collection == "" {
			collection = defaultQdrantCollection
		}
		idx, err := qdrant.NewIndex(url, collection, dims)
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q (expected embedded or qdrant)", backend)
	}
}

// buildReranker returns a cross-encoder reranker when one is
// configured, nil otherwise. Search works without one.
func buildReranker(cfg driven.ConfigStore) driven.Reranker {
	url := cfg.GetString("rerank.url")
	if url == "" {
		return nil
	}
	return tei.NewReranker(tei.Config{BaseURL: url})
}
