// internal/cli/fetch.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web-traces/wlprep/internal/fetch"
	"github.com/web-traces/wlprep/internal/hub"
	"github.com/web-traces/wlprep/internal/ui"
	headersutil "github.com/web-traces/wlprep/internal/utils/headers"
)

var (
	headers      []string
	extract      bool
	fetchWorkers int
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download demonstration archives from the dataset hub",
	Long: `Downloads the split table and each demonstration archive of the requested
splits using a pool of concurrent workers. Archives already on disk are
skipped unless --overwrite is given.

Gated datasets need an access token; store one with "wlprep login".`,
	Example: `  # Fetch every split and unpack the archives
  wlprep fetch --extract

  # Only the validation split
  wlprep fetch --splits valid

  # Single worker with a byte-level progress bar
  wlprep fetch --splits valid -w 1`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringSliceVar(&splits, "splits", nil, "Split names to fetch (default all known splits)")
	fetchCmd.Flags().BoolVar(&extract, "extract", false, "Unpack each archive into demonstrations/<id>/")
	fetchCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Redownload archives already on disk")
	fetchCmd.Flags().IntVarP(&fetchWorkers, "workers", "w", 0, "Concurrent download workers (default 5)")
	fetchCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (e.g., -H \"X-Request-Id: abc\")")
}

func runFetch(cmd *cobra.Command, args []string) error {
	a := GetApp()
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	if fetchWorkers > 0 {
		a.Config.Workers = fetchWorkers
	}

	client := fetch.NewClient(fetch.ClientOptions{
		BaseURL: a.Config.HubBaseURL,
		Mirrors: a.Config.HubMirrors,
		Token:   hub.Token(),
		Headers: headersutil.ParseHeaders(headers),
		Timeout: a.Config.HTTPTimeout,
		RPS:     a.Config.FetchRPS,
		Burst:   a.Config.FetchBurst,
	})

	runner := fetch.NewRunner(a.Config, client)
	result, err := runner.Run(cmd.Context(), fetch.Options{
		Splits:    splits,
		Overwrite: overwrite,
		Extract:   extract,
	})
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("\n%s\n", ui.Bold("Fetch Summary:"))
		fmt.Printf("  %s %s\n", ui.ColorBold+"Downloaded:"+ui.ColorReset, ui.Success(fmt.Sprintf("%d", result.Downloaded)))
		fmt.Printf("  %s %s\n", ui.ColorBold+"Skipped:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.Skipped)+ui.ColorReset)
		fmt.Printf("  %s %s\n", ui.ColorBold+"Failed:"+ui.ColorReset, ui.Error(fmt.Sprintf("%d", result.Failed)))
		if extract {
			fmt.Printf("  %s %s\n", ui.ColorBold+"Extracted:"+ui.ColorReset, ui.ColorWhite+fmt.Sprintf("%d", result.Extracted)+ui.ColorReset)
		}
		fmt.Printf("  %s %s\n", ui.ColorBold+"Total Size:"+ui.ColorReset, ui.ColorWhite+formatBytes(result.Bytes)+ui.ColorReset)
	}

	if result.Failed > 0 {
		return fmt.Errorf("%d download(s) failed", result.Failed)
	}
	return nil
}

// formatBytes formats byte count as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
