package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/core/domain"
	"github.com/notedex/notedex/internal/core/ports/driving"
	"github.com/notedex/notedex/internal/core/services"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync [section-id]",
	Short: "Synchronise pages from the remote store",
	Long: `Reconciles the local cache against the remote notebook store.
If a section ID is provided, only that section is synchronised.
Otherwise, all sections are synchronised.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "keep syncing on the configured interval")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		branchID := args[0]
		cmd.Printf("Synchronising section: %s...\n", branchID)

		if err := syncWithProgress(ctx, cmd, syncOrchestrator, branchID); err != nil {
			if errors.Is(err, domain.ErrPartialSync) {
				cmd.Printf("Section %s partially synchronised: %v\n", branchID, err)
				return nil
			}
			return fmt.Errorf("sync failed: %w", err)
		}

		cmd.Printf("Section %s synchronised successfully.\n", branchID)
		return nil
	}

	cmd.Println("Synchronising all sections...")

	if err := syncOrchestrator.SyncAll(ctx); err != nil {
		if !errors.Is(err, domain.ErrPartialSync) {
			return fmt.Errorf("sync failed: %w", err)
		}
		cmd.Printf("Sync completed with deferred sections: %v\n", err)
	} else {
		cmd.Println("All sections synchronised successfully.")
	}

	if syncWatch {
		return watchSync(ctx, cmd)
	}
	return nil
}

// watchSync keeps the scheduler running until interrupted. The initial
// pass already ran, so the scheduler's own immediate pass is cheap.
func watchSync(ctx context.Context, cmd *cobra.Command) error {
	cmd.Printf("Watching: syncing every %v (ctrl-c to stop).\n", appSettings.SyncInterval)

	sched := services.NewScheduler(appSettings.SyncInterval, syncOrchestrator)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := sched.Start(ctx)
	if errors.Is(err, context.Canceled) {
		cmd.Println("\nStopped.")
		return nil
	}
	return err
}

// syncWithProgress runs a branch sync while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	syncOrch driving.SyncOrchestrator,
	branchID string,
) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- syncOrch.SyncBranch(ctx, branchID)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case err := <-errCh:
			// Final status is best effort.
			status, statusErr := syncOrch.Status(ctx, branchID)
			if statusErr == nil && status != nil && status.DocumentsProcessed > 0 {
				cmd.Printf("\rProcessed %d pages (%d errors)\n",
					status.DocumentsProcessed, status.ErrorCount)
			}
			return err
		case <-ticker.C:
			status, statusErr := syncOrch.Status(ctx, branchID)
			if statusErr == nil && status != nil && status.DocumentsProcessed > lastCount {
				cmd.Printf("\rProcessing... %d pages", status.DocumentsProcessed)
				lastCount = status.DocumentsProcessed
			}
		}
	}
}
