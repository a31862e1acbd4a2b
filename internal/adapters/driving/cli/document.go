package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var getContentOnly bool

var getCmd = &cobra.Command{
	Use:   "get [page-id]",
	Short: "Show a cached page",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently modified pages",
	RunE:  runRecent,
}

func init() {
	getCmd.Flags().BoolVar(&getContentOnly, "content", false, "print only the page content")
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 10, "maximum number of pages")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(recentCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	doc, err := documentService.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get page: %w", err)
	}

	if getContentOnly {
		cmd.Println(doc.Content)
		return nil
	}

	cmd.Printf("Page: %s\n\n", doc.ID)
	cmd.Printf("  Title:     %s\n", doc.Title)
	cmd.Printf("  Path:      %s\n", doc.Path)
	cmd.Printf("  Section:   %s\n", doc.SectionID)
	cmd.Printf("  State:     %s\n", doc.State)
	cmd.Printf("  Modified:  %s\n", doc.RemoteModified.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Synced:    %s\n", doc.LastSynced.Format("2006-01-02 15:04:05"))

	if doc.Content != "" {
		cmd.Println()
		cmd.Println(doc.Content)
	}

	return nil
}

func runRecent(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()

	docs, err := documentService.ListRecentlyModified(ctx, recentLimit)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No cached pages. Run 'notedex sync' first.")
		return nil
	}

	cmd.Println("Recently modified pages:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s  %s\n", docs[i].RemoteModified.Format("2006-01-02 15:04"), docs[i].Title)
		cmd.Printf("    %s\n", docs[i].ID)
	}

	cmd.Printf("\nTotal: %d pages\n", len(docs))
	return nil
}
