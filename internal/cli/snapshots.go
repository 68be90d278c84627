// internal/cli/snapshots.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/snapshot"
	"github.com/web-traces/wlprep/internal/ui"
)

var (
	demoFilter  []string
	skipDemos   []string
	overwrite   bool
	retryFailed bool
)

// snapshotsCmd represents the snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Extract accessibility artifacts from recorded pages",
	Long: `Replays every recorded page through headless Chrome and captures its
accessibility tree, DOM snapshot and per-element properties. Browser-assigned
element ids are remapped back to the recorded WebLINX form, and the recorded
bounding boxes are merged in as visibility and set-of-marks annotations.

Pages that fail to render are marked with a failure file so later runs skip
them; use --retry-failed to try those again, or --overwrite to recapture
everything.`,
	Example: `  # Capture every demonstration under the data dir
  wlprep snapshots

  # Limit the run to two demonstrations
  wlprep snapshots --demos aaabtsd,xjlfewa

  # Retry only the pages that failed last time
  wlprep snapshots --retry-failed

  # Recapture pages even when artifacts already exist
  wlprep snapshots --overwrite`,
	Args: cobra.NoArgs,
	RunE: runSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)

	snapshotsCmd.Flags().StringSliceVar(&demoFilter, "demos", nil, "Demonstration ids to process (default all)")
	snapshotsCmd.Flags().StringSliceVar(&skipDemos, "skip", nil, "Demonstration ids to leave out")
	snapshotsCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Recapture pages whose artifacts already exist")
	snapshotsCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Recapture pages with failure markers")
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	if len(skipDemos) > 0 {
		a.Config.SkippedDemoIDs = append(a.Config.SkippedDemoIDs, skipDemos...)
	}

	if err := a.EnsureBrowserPool(cmd.Context()); err != nil {
		return fmt.Errorf("browser pool: %w", err)
	}

	runner := snapshot.NewRunner(a.Config, a.BrowserPool, a.BBoxes)
	result, err := runner.Run(cmd.Context(), snapshot.Options{
		AllowedDemoIDs: demoFilter,
		Overwrite:      overwrite,
		RetryFailed:    retryFailed,
	})
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("\n%s\n", ui.Bold("Snapshot Summary:"))
		fmt.Printf("  %s %s\n", ui.ColorBold+"Captured:"+ui.ColorReset, ui.Success(fmt.Sprintf("%d", result.Captured)))
		fmt.Printf("  %s %s\n", ui.ColorBold+"Skipped:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.Skipped)+ui.ColorReset)
		fmt.Printf("  %s %s\n", ui.ColorBold+"Failed:"+ui.ColorReset, ui.Error(fmt.Sprintf("%d", result.Failed)))
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d page(s) failed to capture", result.Failed)
	}
	return nil
}
