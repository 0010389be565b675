package driving

import (
	"context"

	"github.com/regsift/regsift/internal/core/domain"
)

// RunOptions controls a single ingestion run.
type RunOptions struct {
	// Root is the directory to scan for SVD files.
	Root string

	// BatchSize is the number of chunks embedded per provider call.
	BatchSize int

	// Workers is the number of files processed concurrently.
	Workers int

	// SkipExisting skips files whose content is already fully indexed.
	SkipExisting bool
}

// IngestOrchestrator coordinates indexing of SVD files into the search
// backends.
type IngestOrchestrator interface {
	// Run discovers SVD files under the root and indexes them. A
	// failing file never aborts the run; failures are collected in the
	// returned summary. An error is returned only when the run itself
	// cannot proceed.
	Run(ctx context.Context, opts RunOptions) (domain.RunSummary, error)

	// IngestFile indexes a single SVD file.
	IngestFile(ctx context.Context, path string, opts RunOptions) (domain.FileReport, error)
}
