package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dt-pm-tools/confluence-sync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure Confluence connection settings",
	Long: `Interactively set up the Confluence URL, username and API token. Sync entries
already present in the config file are kept. Settings are saved to the file
given by --config, ./config.yml when it exists, or ~/.confluence-sync.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		// Load existing config for defaults
		cfg, _ := config.Load(cfgFile)

		url := prompt(reader, "Confluence URL", cfg.Confluence.URL, "e.g., https://your-org.atlassian.net/wiki")
		username := prompt(reader, "Username (leave empty for a personal access token)", cfg.Confluence.Username, "")

		fmt.Print("API Token (input hidden): ")
		tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token := strings.TrimSpace(string(tokenBytes))
		if token == "" {
			token = cfg.Confluence.Token
		}

		cfg.Confluence.URL = strings.TrimRight(url, "/")
		cfg.Confluence.Username = username
		cfg.Confluence.Token = token

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		path := config.ResolvePath(cfgFile)
		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Printf("Configuration saved to %s\n", path)
		if len(cfg.Sync) == 0 {
			fmt.Println("No documents configured yet; add a sync section before running 'confluence-sync sync'.")
		}
		return nil
	},
}

// prompt reads one line, falling back to current when the answer is empty.
func prompt(reader *bufio.Reader, label, current, hint string) string {
	switch {
	case current != "":
		fmt.Printf("%s [%s]: ", label, current)
	case hint != "":
		fmt.Printf("%s (%s): ", label, hint)
	default:
		fmt.Printf("%s: ", label)
	}
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return current
	}
	return answer
}

func init() {
	rootCmd.AddCommand(configCmd)
}
