// internal/cli/login.go
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/web-traces/wlprep/internal/hub"
	"github.com/web-traces/wlprep/internal/ui"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Store a dataset-hub access token",
	Long: `Stores a hub access token in the OS keyring, or in a mode-0600 file where
no keyring is available. The fetch command sends it as a bearer
credential, which gated datasets require.

Without an argument the token is read from a hidden prompt. In CI, set
WLPREP_HUB_TOKEN instead of storing a token.`,
	Example: `  # Prompt for the token without echoing it
  wlprep login

  # Read the token from a secret manager
  pass show hub-token | wlprep login`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored dataset-hub token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	var token string
	switch {
	case len(args) == 1:
		token = args[0]
	case term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Printf("%s ", ui.Bold("Hub access token:"))
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = string(raw)
	default:
		// Piped input, e.g. pass show hub-token | wlprep login
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = line
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := hub.SaveToken(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	log.Debug().Msg("Hub token stored")
	fmt.Println(ui.Success("\n✓ Token saved."))
	fmt.Printf("%s\n", ui.ColorDim+"Subsequent 'wlprep fetch' runs authenticate automatically."+ui.ColorReset)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if err := hub.ClearToken(); err != nil {
		return err
	}
	fmt.Println(ui.Success("✓ Token removed."))
	return nil
}
