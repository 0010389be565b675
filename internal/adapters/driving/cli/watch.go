package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driving"
	"github.com/regsift/regsift/internal/discovery"
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and index SVD files as they change",
	Long: `Runs a full ingest of the directory, then keeps watching it.
SVD files that are created or modified are re-indexed automatically.
Press Ctrl-C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestOrchestrator == nil {
		return errors.New("ingest service not configured")
	}

	root := args[0]
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := driving.RunOptions{Root: root, SkipExisting: true}

	// Catch up before watching so a cold start indexes everything.
	summary, err := ingestOrchestrator.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("initial ingest failed: %w", err)
	}
	cmd.Printf("Indexed %d files (%d chunks), skipped %d. Watching %s...\n",
		summary.FilesProcessed, summary.ChunksIndexed, summary.FilesSkipped, root)

	watcher, err := discovery.NewWatcher(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	defer watcher.Close()

	go watcher.Run(ctx) //nolint:errcheck // terminates via ctx, surfaced by channel close

	for {
		select {
		case <-ctx.Done():
			cmd.Println("\nStopped.")
			return nil
		case f, ok := <-watcher.Changes():
			if !ok {
				return nil
			}
			report, err := ingestOrchestrator.IngestFile(ctx, f.Path, opts)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				cmd.PrintErrf("  failed: %s: %v\n", f.Path, err)
				continue
			}
			if report.Status == domain.FileSkipped {
				continue
			}
			cmd.Printf("  indexed: %s (%d chunks)\n", f.Path, report.Chunks)
		}
	}
}
