package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/views"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

var (
	syncManifest string
	syncEvery    time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index the documents listed in a manifest",
	Long: `Fetches every document in the manifest, skips documents whose content
has not changed since the last sync, and re-indexes the rest.

Prints a JSON summary of the run and exits with status 1 when any document
failed. With --every the sync repeats until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncManifest, "manifest", "m", "", "manifest file (YAML or JSON)")
	syncCmd.Flags().DurationVar(&syncEvery, "every", 0, "repeat the sync at this interval, e.g. 1h")
	_ = syncCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureServices(ctx, false); err != nil {
		return err
	}

	if syncEvery <= 0 {
		return syncOnce(ctx, cmd)
	}

	ticker := time.NewTicker(syncEvery)
	defer ticker.Stop()
	for {
		var ee *exitError
		if err := syncOnce(ctx, cmd); err != nil && !errors.As(err, &ee) {
			logger.Warn("Sync failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// syncOnce runs one sync and prints its summary.
func syncOnce(ctx context.Context, cmd *cobra.Command) error {
	run, err := indexer.Sync(ctx, syncManifest)
	if run != nil {
		if jsonErr := printJSON(cmd, views.FromSyncRun(run)); jsonErr != nil {
			return jsonErr
		}
	}
	if err != nil {
		return err
	}
	if !run.OK() {
		return &exitError{code: 1}
	}
	return nil
}
