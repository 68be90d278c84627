package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("data-dir", "d", DefaultDataDir, "Dataset root holding demonstrations/ and splits.json")
	cmd.PersistentFlags().StringP("output-dir", "o", DefaultOutputDir, "Directory for built indexes, task lists and packages")
	cmd.PersistentFlags().String("chrome-path", "", "Path to the Chrome/Chromium binary")
	cmd.PersistentFlags().String("timeout", "", "Hard timeout for hub HTTP requests (e.g. 45s)")
	cmd.PersistentFlags().String("config", "", "Path to a YAML configuration file (optional)")
}
