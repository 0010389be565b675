package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regsift/regsift/internal/core/domain"
)

func TestLoadCmd_Use(t *testing.T) {
	assert.Equal(t, "load <directory>", loadCmd.Use)
}

func TestLoadCmd_RequiresDirectory(t *testing.T) {
	_, err := execute("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestLoadCmd_PrintsSummary(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("load", "./data")

	assert.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 files")
	assert.Contains(t, out, "40 chunks")
}

func TestLoadCmd_SkipsExistingByDefault(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := ingestOrchestrator.(*mockIngestOrchestrator)

	_, err := execute("load", "./data")

	require.NoError(t, err)
	assert.Equal(t, "./data", mock.lastOpts.Root)
	assert.True(t, mock.lastOpts.SkipExisting)
}

func TestLoadCmd_SkipExistingCanBeDisabled(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := ingestOrchestrator.(*mockIngestOrchestrator)

	_, err := execute("load", "--skip-existing=false", "./data")
	defer func() { loadSkipExisting = true }()

	require.NoError(t, err)
	assert.False(t, mock.lastOpts.SkipExisting)
}

func TestLoadCmd_PassesTuningFlags(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := ingestOrchestrator.(*mockIngestOrchestrator)

	_, err := execute("load", "--batch-size", "32", "--workers", "2", "./data")
	defer func() { loadBatchSize, loadWorkers = 0, 0 }()

	require.NoError(t, err)
	assert.Equal(t, 32, mock.lastOpts.BatchSize)
	assert.Equal(t, 2, mock.lastOpts.Workers)
}

func TestLoadCmd_FailuresProduceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ingestOrchestrator = &mockIngestOrchestrator{
		summary: domain.RunSummary{
			FilesFound:     3,
			FilesProcessed: 2,
			FilesFailed:    1,
			Failures:       []domain.FileFailure{{Path: "data/broken.svd", Reason: "parse error"}},
		},
	}

	out, err := execute("load", "./data")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files failed")
	assert.Contains(t, out, "data/broken.svd")
}

func TestLoadCmd_ServiceNotConfigured(t *testing.T) {
	oldIngest := ingestOrchestrator
	ingestOrchestrator = nil
	defer func() { ingestOrchestrator = oldIngest }()

	_, err := execute("load", "./data")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ingest service not configured")
}
