package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dt-pm-tools/confluence-sync/internal/confluence"
	"github.com/dt-pm-tools/confluence-sync/internal/config"
	"github.com/dt-pm-tools/confluence-sync/internal/observability"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	appConfig config.Config
	logger    = zerolog.Nop()
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "confluence-sync",
	Short: "Mirror Markdown documents from GitHub onto Confluence pages",
	Long: `A CLI tool that converts Markdown documents from GitHub (or a local checkout) to
Confluence storage format and creates or updates the mapped pages. Runs are
idempotent: pages whose content already matches are left untouched.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := observability.InitLogger(logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml, then ~/.confluence-sync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console or json)")
}

// loadConfig loads and validates configuration. Commands that need Confluence
// access call this; withSync also requires at least one sync entry.
func loadConfig(withSync bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	validate := cfg.Validate
	if withSync {
		validate = cfg.ValidateSync
	}
	if err := validate(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'confluence-sync config' to set up credentials", err)
	}
	appConfig = cfg
	return nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: appConfig.Confluence.RequestTimeout()}
}

func newConfluenceClient() *confluence.Client {
	auth := confluence.Auth{Username: appConfig.Confluence.Username, Token: appConfig.Confluence.Token}
	return confluence.NewClient(appConfig.Confluence.URL, auth, httpClient()).WithLogger(logger)
}
