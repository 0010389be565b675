package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/regsift/regsift/internal/core/ports/driving"
)

var (
	loadBatchSize    int
	loadWorkers      int
	loadSkipExisting bool
)

var loadCmd = &cobra.Command{
	Use:   "load <directory>",
	Short: "Ingest SVD files into the index",
	Long: `Scans a directory tree for .svd files and indexes every register
they describe. The first path element under the directory is recorded
as the vendor, so a layout like data/STMicro/stm32f407.svd attributes
devices correctly.

Files already indexed with unchanged content are skipped unless
--skip-existing=false is given. Failures are reported per file and do
not stop the rest of the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0, "chunks per embedding request (default 64)")
	loadCmd.Flags().IntVar(&loadWorkers, "workers", 0, "parallel file workers (default 4)")
	loadCmd.Flags().BoolVar(&loadSkipExisting, "skip-existing", true, "skip files whose content is already indexed")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	if ingestOrchestrator == nil {
		return errors.New("ingest service not configured")
	}

	root := args[0]
	cmd.Printf("Indexing SVD files under %s...\n", root)

	summary, err := ingestOrchestrator.Run(cmd.Context(), driving.RunOptions{
		Root:         root,
		BatchSize:    loadBatchSize,
		Workers:      loadWorkers,
		SkipExisting: loadSkipExisting,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Indexed %d files (%d registers, %d chunks), skipped %d unchanged in %s.\n",
		summary.FilesProcessed, summary.RegistersParsed, summary.ChunksIndexed,
		summary.FilesSkipped, summary.Elapsed.Round(10*time.Millisecond))

	if summary.Failed() {
		for _, f := range summary.Failures {
			cmd.PrintErrf("  failed: %s: %s\n", f.Path, f.Reason)
		}
		return fmt.Errorf("%d of %d files failed", summary.FilesFailed, summary.FilesFound)
	}
	return nil
}
