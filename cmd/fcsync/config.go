package main

import (
	"fmt"
	"os"
	"path/filepath"

	"fcsync/pkg/config"
	"fcsync/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const exampleConfig = `# fcsync configuration
#
# Every value can also be set with an FCSYNC_ environment variable,
# for example FCSYNC_SESSION_ID or FCSYNC_OUTPUT_DIR.

session:
  # _session_id cookie. Prefer 'fcsync auth login', which keeps it out of
  # plain-text files.
  session_id: ""
  user_agent: ""
  base_url: "https://fantia.jp"
  timeout: 60s

output:
  # Root of the mirrored tree: <owner> (<channel>)/<date>-<title>-<id>/
  base_directory: "./fanclubs"

rate_limit:
  # Minimum delay between feed page requests
  page_delay: 1s
  # Minimum delay between content downloads
  download_delay: 500ms

retry:
  # Applies to metadata, feed and directory requests. Content downloads
  # are never retried.
  enabled: true
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s

feed:
  # html reads rendered feed pages, api reads the JSON endpoint
  source: "html"
  # Pages per channel, 0 for no limit
  max_pages: 0
  # Restrict runs to these channel ids
  channels: []

checkpoint:
  # Empty means checkpoints.json in the platform data directory
  file: ""
  # Copy the checkpoint file to <file>.backup before each run
  backup: true

logging:
  # debug, info, warn, error
  level: "info"
  file: ""
  json: false
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fcsync configuration files.

Configuration is merged from, highest priority first:
  - command line flags
  - FCSYNC_* environment variables and .env files
  - the configuration file
  - defaults`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every option.

The file is written to fcsync.yaml unless --config names another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "fcsync.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'fcsync auth login' to store your session cookie")
	fmt.Println("2. Run 'fcsync config validate'")
	fmt.Println("3. Run 'fcsync sync'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	display.Session.SessionID = maskSecret(display.Session.SessionID)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Effective configuration")
	fmt.Println()
	fmt.Print(string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none)"
	}
	fmt.Println()
	ui.PrintInfo("Configuration file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var warnings []string
	if cfg.Session.SessionID == "" {
		warnings = append(warnings, "no session_id configured; a stored account will be used")
	}
	if cfg.RateLimit.PageDelay < config.DefaultConfig().RateLimit.PageDelay {
		warnings = append(warnings, "page_delay is below the default and may trigger rate limiting")
	}

	var problems []string
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration error(s)", len(problems))
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Printf("\n  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Feed source: %s\n", cfg.Feed.Source)
	fmt.Printf("  Delays: pages %s, downloads %s\n", cfg.RateLimit.PageDelay, cfg.RateLimit.DownloadDelay)
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-4:]
	}
}
