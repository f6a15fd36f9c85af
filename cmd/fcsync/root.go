package main

import (
	"fmt"
	"os"
	"runtime"

	"fcsync/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd syncs every subscribed channel when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "fcsync",
	Short: "Incrementally mirror the fanclubs you subscribe to",
	Long: `fcsync mirrors the posts of every fanclub you subscribe to into a local
directory tree.

Each run lists your paid and free subscriptions, walks each channel's post
feed newest first until it reaches the last post already synced, and
downloads the visible content of every new post. Progress is committed per
channel, so an interrupted run resumes where it stopped.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logLevel = "error"
		}
		if !quiet && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
	RunE: runSync,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: fcsync.yaml or ~/.config/fcsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress everything but errors and the summary line")

	registerSyncFlags(rootCmd)

	rootCmd.SetVersionTemplate(`fcsync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the config overrides shared by every command
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}
