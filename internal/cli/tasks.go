// internal/cli/tasks.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/metadata"
	"github.com/web-traces/wlprep/internal/tasks"
	"github.com/web-traces/wlprep/internal/ui"
)

var indexPath string

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Write browsergym task CSVs from the metadata index",
	Long: `Selects the benchmark-eligible steps of each split (steps that are tasks
and have their full snapshot on disk) and writes one CSV per split under
<output-dir>/browsergym/task_metadata/, plus the combined weblinx_all.csv.

Run "wlprep metadata" first to build the index this reads.`,
	Example: `  # Task CSVs from the default index location
  wlprep tasks

  # Read a previously built index from elsewhere
  wlprep tasks --index /data/out/metadata.json`,
	Args: cobra.NoArgs,
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.Flags().StringVar(&indexPath, "index", "", "Path to metadata.json (default <output-dir>/metadata.json)")
}

func runTasks(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	path := indexPath
	if path == "" {
		path = metadata.IndexPath(a.Config.OutputDir)
	}

	index, err := metadata.LoadIndex(path)
	if err != nil {
		return fmt.Errorf("load index: %w (run 'wlprep metadata' first)", err)
	}

	counts, err := tasks.WriteCSVs(index, a.Config.OutputDir)
	if err != nil {
		return err
	}

	if quiet {
		return nil
	}

	total := 0
	fmt.Printf("\n%s\n", ui.Bold("Task Summary:"))
	for _, split := range indexOrder(index) {
		n, ok := counts[split]
		if !ok {
			continue
		}
		total += n
		fmt.Printf("  %s %s\n", ui.ColorBold+split+":"+ui.ColorReset,
			ui.ColorWhite+fmt.Sprintf("%d tasks", n)+ui.ColorReset)
	}
	fmt.Printf("  %s %s\n", ui.ColorBold+"Total:"+ui.ColorReset,
		ui.ColorWhite+fmt.Sprintf("%d tasks", total)+ui.ColorReset)
	fmt.Printf("\n%s Saved under %s\n", ui.Success("✓"), a.Config.OutputDir)

	return nil
}
