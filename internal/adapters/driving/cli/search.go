package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/core/domain"
)

var (
	searchLimit    int
	searchBranch   string
	searchDeadline time.Duration
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search cached notebook pages",
	Long: `Performs hybrid search across the cached notebook pages.
Combines keyword and semantic matching, and falls back to the remote
store when the local cache is insufficient or stale for the query.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchBranch, "section", "s", "", "restrict the query to one section")
	searchCmd.Flags().DurationVar(&searchDeadline, "deadline", 0, "latency budget including remote fallback (e.g. 2s)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := context.Background()
	opts := domain.SearchOptions{
		Limit:    searchLimit,
		BranchID: searchBranch,
		Deadline: searchDeadline,
	}

	results, err := searchService.Search(ctx, query, opts)
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
		doc := &results[i].Document
		title := doc.Title
		if title == "" {
			title = doc.ID
		}

		cmd.Printf("[%d] %s (%.2f, %s)\n", i+1, title, results[i].Score, results[i].Provenance)
		if doc.Path != "" {
			cmd.Printf("    %s\n", doc.Path)
		}
		for _, highlight := range results[i].Highlights {
			cmd.Printf("    > %s\n", highlight)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d results\n", len(results))
	return nil
}
