// Package cli implements the command-line interface. Commands talk to
// the core services through the driving ports; wiring happens in the
// composition root before Execute runs.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/regsift/regsift/internal/core/ports/driven"
	"github.com/regsift/regsift/internal/core/ports/driving"
	"github.com/regsift/regsift/internal/logger"
)

// version is overridden at build time via ldflags.
var version = "dev"

// Injected services. Nil checks in each command keep partial wiring
// (e.g. search without an embedding provider) from panicking.
var (
	searchService      driving.SearchService
	ingestOrchestrator driving.IngestOrchestrator
	chunkStore         driven.ChunkStore
	configStore        driven.ConfigStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "regsift",
	Short: "Search hardware register descriptions from SVD files",
	Long: `Regsift indexes CMSIS-SVD device description files and answers
natural-language questions about hardware registers.

Ingestion parses SVD files into one chunk per register, embeds the
chunks, and indexes them for hybrid (semantic + keyword) retrieval.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services holds the wired driving-side dependencies.
type Services struct {
	Search  driving.SearchService
	Ingest  driving.IngestOrchestrator
	Catalog driven.ChunkStore
	Config  driven.ConfigStore
}

// SetServices injects the wired services. Called once from the
// composition root.
func SetServices(s Services) {
	searchService = s.Search
	ingestOrchestrator = s.Ingest
	chunkStore = s.Catalog
	configStore = s.Config
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
