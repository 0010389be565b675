package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/regsift/regsift/internal/chunker"
	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/core/ports/driving"
	"github.com/regsift/regsift/internal/discovery"
	"github.com/regsift/regsift/internal/logger"
	"github.com/regsift/regsift/internal/svd"
)

// Ensure IngestService implements the interface.
var _ driving.IngestOrchestrator = (*IngestService)(nil)

const (
	// defaultBatchSize caps the number of chunks per embedding call.
	defaultBatchSize = 64

	// defaultWorkers is the file-level concurrency of a run.
	defaultWorkers = 4

	// maxAttempts bounds retries for embedding and index writes. Parse
	// failures are deterministic and never retried.
	maxAttempts = 3

	// initialBackoff doubles on each failed attempt.
	initialBackoff = 500 * time.Millisecond
)

// IngestService indexes SVD files into the chunk catalog, the vector
// index and the full-text index.
type IngestService struct {
	chunkStore       driven.ChunkStore
	searchIndex      driven.SearchEngine
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService

	// sleep is replaceable so retry tests run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIngestService creates a new ingestion orchestrator.
func NewIngestService(
	chunkStore driven.ChunkStore,
	searchIndex driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
) *IngestService {
	return &IngestService{
		chunkStore:       chunkStore,
		searchIndex:      searchIndex,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		sleep:            sleepCtx,
	}
}

// Run discovers SVD files under opts.Root and indexes them with a
// bounded worker pool. One failing file never aborts the run: each
// worker hands a FileReport to a single aggregating goroutine, and
// failures surface in the summary.
func (s *IngestService) Run(ctx context.Context, opts driving.RunOptions) (domain.RunSummary, error) {
	start := time.Now()
	opts = withDefaults(opts)

	files, err := discovery.Discover(opts.Root)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("discover files: %w", err)
	}

	summary := domain.RunSummary{FilesFound: len(files)}
	if len(files) == 0 {
		logger.Warn("No SVD files found under %s", opts.Root)
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	byVendor := discovery.GroupByVendor(files)
	logger.Info("Found %d files across %d vendors", len(files), len(byVendor))
	for vendor, group := range byVendor {
		logger.Debug("Vendor %s: %d files", vendor, len(group))
	}

	reports := make(chan domain.FileReport)
	done := make(chan struct{})

	// Single owner of the summary. Workers only send reports.
	go func() {
		defer close(done)
		for r := range reports {
			switch r.Status {
			case domain.FileSucceeded:
				summary.FilesProcessed++
				summary.RegistersParsed += r.Registers
				summary.ChunksIndexed += r.Chunks
				logger.Info("Indexed %s: %d registers, %d chunks", r.Path, r.Registers, r.Chunks)
			case domain.FileSkipped:
				summary.FilesSkipped++
				logger.Debug("Skipped %s: already indexed", r.Path)
			case domain.FileFailed:
				summary.FilesFailed++
				summary.Failures = append(summary.Failures, domain.FileFailure{
					Path:   r.Path,
					Reason: r.Err.Error(),
				})
				logger.Warn("Failed %s: %v", r.Path, r.Err)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report := s.processFile(gctx, f, opts)
			select {
			case reports <- report:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err = g.Wait()
	close(reports)
	<-done

	summary.Elapsed = time.Since(start)
	if err != nil {
		return summary, fmt.Errorf("ingestion run: %w", err)
	}
	return summary, nil
}

// IngestFile indexes a single SVD file.
func (s *IngestService) IngestFile(ctx context.Context, path string, opts driving.RunOptions) (domain.FileReport, error) {
	opts = withDefaults(opts)
	file := discovery.File{Path: path, Vendor: discovery.VendorOf(opts.Root, path)}

	report := s.processFile(ctx, file, opts)
	if report.Status == domain.FileFailed {
		return report, report.Err
	}
	return report, nil
}

func withDefaults(opts driving.RunOptions) driving.RunOptions {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return opts
}

// processFile runs the full pipeline for one file: hash, skip check,
// parse, chunk, embed in batches, index. Every failure is folded into
// the returned report; nothing escapes to abort sibling files.
func (s *IngestService) processFile(ctx context.Context, file discovery.File, opts driving.RunOptions) domain.FileReport {
	report := domain.FileReport{Path: file.Path, Vendor: file.Vendor}

	content, err := os.ReadFile(file.Path)
	if err != nil {
		report.Status = domain.FileFailed
		report.Err = fmt.Errorf("read file: %w", err)
		return report
	}
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	if opts.SkipExisting && s.alreadyIndexed(ctx, file.Path, checksum) {
		report.Status = domain.FileSkipped
		return report
	}

	devices, err := svd.ParseFile(file.Path)
	if err != nil {
		report.Status = domain.FileFailed
		report.Err = err
		return report
	}

	var chunks []domain.Chunk
	for _, dev := range devices {
		report.Registers += registerCount(dev)
		chunks = append(chunks, chunker.Build(dev, file.Vendor, file.Path)...)
	}

	// A previously indexed file is purged from the search backends
	// before the new chunks land: registers removed from the file must
	// not survive as orphans. The catalog replaces its own rows in
	// SaveChunks. Purging waits until after a successful parse so a
	// broken rewrite keeps the last good index intact.
	if _, ferr := s.chunkStore.FileState(ctx, file.Path); ferr == nil {
		if err := s.purgeSource(ctx, file.Path); err != nil {
			report.Status = domain.FileFailed
			report.Err = err
			return report
		}
	}

	if len(chunks) == 0 {
		logger.Debug("No registers in %s", file.Path)
		if err := s.chunkStore.DeleteBySource(ctx, file.Path); err != nil {
			report.Status = domain.FileFailed
			report.Err = fmt.Errorf("delete stale chunks: %w", err)
			return report
		}
		report.Status = domain.FileSucceeded
		return report
	}

	if err := s.indexChunks(ctx, chunks, opts.BatchSize); err != nil {
		report.Status = domain.FileFailed
		report.Err = err
		return report
	}

	state := driven.FileState{
		Path:      file.Path,
		Vendor:    file.Vendor,
		SHA256:    checksum,
		Chunks:    len(chunks),
		IndexedAt: time.Now(),
	}
	if err := s.chunkStore.SaveChunks(ctx, chunks, state); err != nil {
		report.Status = domain.FileFailed
		report.Err = fmt.Errorf("save chunks: %w", err)
		return report
	}

	report.Status = domain.FileSucceeded
	report.Chunks = len(chunks)
	return report
}

// purgeSource removes a file's records from the vector and lexical
// indexes. Deletes are retried like any other index write.
func (s *IngestService) purgeSource(ctx context.Context, path string) error {
	if err := s.withRetry(ctx, "vector delete", func() error {
		return s.vectorIndex.DeleteBySource(ctx, path)
	}); err != nil {
		return fmt.Errorf("vector delete: %w", err)
	}

	if err := s.withRetry(ctx, "lexical delete", func() error {
		return s.searchIndex.DeleteBySource(ctx, path)
	}); err != nil {
		return fmt.Errorf("lexical delete: %w", err)
	}
	return nil
}

// alreadyIndexed reports whether the file's content is fully present in
// the indexes: the manifest checksum matches and the vector index holds
// as many records as the manifest recorded. A partially indexed file
// fails the count check and is re-ingested.
func (s *IngestService) alreadyIndexed(ctx context.Context, path, checksum string) bool {
	state, err := s.chunkStore.FileState(ctx, path)
	if err != nil {
		return false
	}
	if state.SHA256 != checksum || state.Chunks == 0 {
		return false
	}

	count, err := s.vectorIndex.CountBySource(ctx, path)
	if err != nil {
		logger.Debug("Count check for %s failed: %v", path, err)
		return false
	}
	return count >= state.Chunks
}

// indexChunks embeds and indexes chunks in batches of at most
// batchSize. Embedding and index writes are retried with backoff;
// cancellation is honoured between batches.
func (s *IngestService) indexChunks(ctx context.Context, chunks []domain.Chunk, batchSize int) error {
	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}

		var embeddings [][]float32
		err := s.withRetry(ctx, "embed batch", func() error {
			var embErr error
			embeddings, embErr = s.embeddingService.EmbedBatch(ctx, texts)
			return embErr
		})
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embed batch: got %d embeddings for %d chunks", len(embeddings), len(batch))
		}

		records := make([]driven.Record, len(batch))
		for i := range batch {
			batch[i].Embedding = embeddings[i]
			records[i] = driven.Record{
				ID:       batch[i].ID,
				Vector:   embeddings[i],
				Text:     batch[i].Text,
				Metadata: batch[i].Metadata,
			}
		}

		if err := s.withRetry(ctx, "vector upsert", func() error {
			return s.vectorIndex.Upsert(ctx, records)
		}); err != nil {
			return fmt.Errorf("vector upsert: %w", err)
		}

		if err := s.withRetry(ctx, "lexical index", func() error {
			return s.searchIndex.IndexBatch(ctx, batch)
		}); err != nil {
			return fmt.Errorf("lexical index: %w", err)
		}

		logger.Debug("Indexed batch %d-%d of %d chunks", start, end, len(chunks))
	}
	return nil
}

// withRetry runs fn up to maxAttempts times with exponential backoff.
func (s *IngestService) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := initialBackoff
	var err error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		logger.Warn("%s attempt %d/%d failed: %v, retrying in %s", op, attempt, maxAttempts, err, backoff)
		if serr := s.sleep(ctx, backoff); serr != nil {
			return serr
		}
		backoff *= 2
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func registerCount(dev domain.Device) int {
	n := 0
	for _, p := range dev.Peripherals {
		n += len(p.Registers)
	}
	return n
}
