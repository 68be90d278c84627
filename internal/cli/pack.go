// internal/cli/pack.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/pack"
	"github.com/web-traces/wlprep/internal/ui"
)

// packCmd represents the pack command
var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Package the pruned benchmark subset",
	Long: `Copies, for every demonstration in the metadata index, only the files the
benchmark harness replays: descriptors, the pages and screenshots of
benchmark-eligible steps, and their element properties with packaging
mark rules applied. Each packaged demonstration is then zipped.

Run "wlprep metadata" first to build the index this reads.`,
	Example: `  # Package every split in the index
  wlprep pack

  # Package the test splits only
  wlprep pack --splits test_iid,test_web`,
	Args: cobra.NoArgs,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().StringVar(&indexPath, "index", "", "Path to metadata.json (default <output-dir>/metadata.json)")
	packCmd.Flags().StringSliceVar(&splits, "splits", nil, "Split names to package (default all known splits)")
}

func runPack(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	runner := pack.NewRunner(a.Config)
	result, err := runner.Run(cmd.Context(), pack.Options{
		IndexPath: indexPath,
		Splits:    splits,
	})
	if err != nil {
		return err
	}

	if quiet {
		return nil
	}

	fmt.Printf("\n%s\n", ui.Bold("Pack Summary:"))
	fmt.Printf("  %s %s\n", ui.ColorBold+"Demos:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.Demos)+ui.ColorReset)
	fmt.Printf("  %s %s\n", ui.ColorBold+"Files Copied:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.FilesCopied)+ui.ColorReset)
	fmt.Printf("  %s %s\n", ui.ColorBold+"Pages Processed:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.Processed)+ui.ColorReset)
	fmt.Printf("  %s %s\n", ui.ColorBold+"Zipped:"+ui.ColorReset, ui.Success(fmt.Sprintf("%d", result.Zipped)))
	fmt.Printf("  %s %s\n", ui.ColorBold+"Missing Files:"+ui.ColorReset, ui.Error(fmt.Sprintf("%d", result.Missing)))

	return nil
}
