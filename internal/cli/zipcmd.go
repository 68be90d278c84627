// internal/cli/zipcmd.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/archive"
	"github.com/web-traces/wlprep/internal/ui"
)

// zipCmd represents the zip command
var zipCmd = &cobra.Command{
	Use:   "zip",
	Short: "Zip demonstration directories for upload",
	Long: `Compresses each directory under demonstrations/ into
demonstrations_zip/<id>.zip. A checkpoint file records finished
demonstrations so an interrupted run resumes where it stopped.`,
	Example: `  # Zip everything not yet in the checkpoint
  wlprep zip

  # Rezip demonstrations the checkpoint already lists
  wlprep zip --overwrite`,
	Args: cobra.NoArgs,
	RunE: runZip,
}

func init() {
	rootCmd.AddCommand(zipCmd)

	zipCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Rezip demonstrations the checkpoint already lists")
}

func runZip(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	runner := archive.NewRunner(a.Config)
	result, err := runner.Run(cmd.Context(), archive.Options{Overwrite: overwrite})
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("\n%s\n", ui.Bold("Zip Summary:"))
		fmt.Printf("  %s %s\n", ui.ColorBold+"Zipped:"+ui.ColorReset, ui.Success(fmt.Sprintf("%d", result.Zipped)))
		fmt.Printf("  %s %s\n", ui.ColorBold+"Skipped:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.Skipped)+ui.ColorReset)
		fmt.Printf("  %s %s\n", ui.ColorBold+"Failed:"+ui.ColorReset, ui.Error(fmt.Sprintf("%d", result.Failed)))
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d demonstration(s) failed to zip", result.Failed)
	}
	return nil
}
