package cli

import (
	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driving"
	"github.com/notedex/notedex/internal/logger"
)

// version is stamped from the build via Execute.
var version = "dev"

var verbose bool

// Services wired at startup by initApp. Tests swap these for mocks.
var (
	searchService    driving.SearchService
	syncOrchestrator driving.SyncOrchestrator
	documentService  driving.DocumentService
	appSettings      = domain.DefaultSettings()
)

var rootCmd = &cobra.Command{
	Use:   "notedex",
	Short: "Local cache and hybrid search for your remote notebooks",
	Long: `Notedex keeps a local, searchable cache of a remote notebook store.
It syncs notebooks, sections and pages into SQLite, indexes them for
keyword and semantic search, and answers queries locally, falling back
to the remote API only when the cache is insufficient or stale.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute wires the application and runs the root command.
func Execute(ver string) error {
	version = ver

	app, err := initApp()
	if err != nil {
		return err
	}
	defer app.Close()

	return rootCmd.Execute()
}
