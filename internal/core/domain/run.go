package domain

import "time"

// FileStatus classifies the outcome of processing one description file.
type FileStatus string

const (
	// FileSucceeded means the file was parsed and fully indexed.
	FileSucceeded FileStatus = "succeeded"

	// FileSkipped means the file was already indexed and untouched.
	FileSkipped FileStatus = "skipped"

	// FileFailed means parsing or indexing failed; the file contributed
	// zero records.
	FileFailed FileStatus = "failed"
)

// FileReport is the result one file-processing task hands back to the
// run aggregator. Aggregation happens in a single owner goroutine, so
// reports need no synchronisation of their own.
type FileReport struct {
	Path      string
	Vendor    string
	Status    FileStatus
	Registers int
	Chunks    int
	Err       error
}

// FileFailure records one failed file for the run summary.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RunSummary aggregates an ingestion run. It is the sole externally
// observable success criterion for a load run.
type RunSummary struct {
	FilesFound      int           `json:"files_found"`
	FilesProcessed  int           `json:"files_processed"`
	FilesSkipped    int           `json:"files_skipped"`
	FilesFailed     int           `json:"files_failed"`
	RegistersParsed int           `json:"registers_parsed"`
	ChunksIndexed   int           `json:"chunks_indexed"`
	Failures        []FileFailure `json:"failures,omitempty"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Failed reports whether any file failed during the run.
func (s RunSummary) Failed() bool {
	return s.FilesFailed > 0
}
