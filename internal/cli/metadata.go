// internal/cli/metadata.go
package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/metadata"
	"github.com/web-traces/wlprep/internal/ui"
	"github.com/web-traces/wlprep/pkg/models"
)

var splits []string

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Build the consolidated per-turn metadata index",
	Long: `Walks every demonstration of the requested splits and consolidates each
action turn's metadata (intent, target element, bounding box, viewport,
timing) into a single index keyed by split, demonstration and turn.

The index is written to <output-dir>/metadata.json and consumed by the
tasks and pack stages.`,
	Example: `  # Index every known split
  wlprep metadata

  # Only the training and validation splits
  wlprep metadata --splits train,valid`,
	Args: cobra.NoArgs,
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)

	metadataCmd.Flags().StringSliceVar(&splits, "splits", nil, "Split names to index (default all known splits)")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	builder := metadata.NewBuilder(a.Config)
	index, err := builder.Build(cmd.Context(), metadata.Options{Splits: splits})
	if err != nil {
		return err
	}

	path := metadata.IndexPath(a.Config.OutputDir)
	if err := metadata.WriteIndex(index, path); err != nil {
		return err
	}

	if quiet {
		return nil
	}

	totalDemos, totalSteps := 0, 0
	fmt.Printf("\n%s\n", ui.Bold("Metadata Summary:"))
	for _, split := range indexOrder(index) {
		byDemo := index[split]
		steps := 0
		for _, turns := range byDemo {
			steps += len(turns)
		}
		totalDemos += len(byDemo)
		totalSteps += steps
		fmt.Printf("  %s %s\n", ui.ColorBold+split+":"+ui.ColorReset,
			ui.ColorWhite+fmt.Sprintf("%d demos, %d steps", len(byDemo), steps)+ui.ColorReset)
	}
	fmt.Printf("  %s %s\n", ui.ColorBold+"Total:"+ui.ColorReset,
		ui.ColorWhite+fmt.Sprintf("%d demos, %d steps", totalDemos, totalSteps)+ui.ColorReset)
	fmt.Printf("\n%s Saved to %s\n", ui.Success("✓"), path)

	return nil
}

// indexOrder returns the index's splits in canonical order, with any
// unknown splits sorted at the end.
func indexOrder(index models.MetadataIndex) []string {
	var order []string
	for _, s := range dataset.KnownSplits {
		if _, ok := index[s]; ok {
			order = append(order, s)
		}
	}
	var extras []string
	for s := range index {
		if !dataset.IsKnownSplit(s) {
			extras = append(extras, s)
		}
	}
	sort.Strings(extras)
	return append(order, extras...)
}
