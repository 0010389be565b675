package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is indexed",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if chunkStore == nil {
		return errors.New("catalog not configured")
	}

	stats, err := chunkStore.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("read catalog stats: %w", err)
	}

	cmd.Println("Catalog")
	cmd.Println("=======")
	cmd.Printf("  Files:     %d\n", stats.Files)
	cmd.Printf("  Registers: %d\n", stats.Chunks)
	cmd.Printf("  Vendors:   %d\n", stats.Vendors)
	cmd.Printf("  Devices:   %d\n", stats.Devices)

	if configStore != nil {
		cmd.Println()
		cmd.Printf("Config: %s\n", configStore.Path())
	}
	return nil
}
