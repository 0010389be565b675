package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regsift/regsift/internal/core/domain"
)

var (
	searchLimit    int
	searchVendor   string
	searchDevice   string
	searchJSON     bool
	searchNoRerank bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed registers",
	Long: `Performs hybrid search across all indexed registers.
Combines semantic (vector) and keyword retrieval, so both natural
language ("enable uart interrupt") and register mnemonics ("BRR")
find the right registers.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchVendor, "vendor", "", "restrict results to one vendor")
	searchCmd.Flags().StringVar(&searchDevice, "device", "", "restrict results to one device")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchNoRerank, "no-rerank", false, "skip the reranking pass")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit:         searchLimit,
		Vendor:        searchVendor,
		Device:        searchDevice,
		DisableRerank: searchNoRerank,
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		m := results[i].Metadata
		cmd.Printf("  [%d] %s/%s/%s (%.2f)\n", i+1, m.Device, m.Peripheral, m.Register, results[i].Score)
		cmd.Printf("      Address: 0x%08X  Vendor: %s\n", m.Address, m.Vendor)
		if results[i].Snippet != "" {
			cmd.Printf("      %s\n", results[i].Snippet)
		}
		cmd.Println()
	}

	return nil
}
