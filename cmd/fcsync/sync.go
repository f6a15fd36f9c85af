package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fcsync/internal/downloader"
	"fcsync/pkg/auth"
	"fcsync/pkg/checkpoint"
	"fcsync/pkg/config"
	errs "fcsync/pkg/errors"
	"fcsync/pkg/fanclub"
	"fcsync/pkg/logger"
	"fcsync/pkg/ratelimit"
	"fcsync/pkg/retry"
	"fcsync/pkg/storage"
	"fcsync/pkg/syncer"
	"fcsync/pkg/ui"

	"github.com/spf13/cobra"
)

// Sync command flags
var (
	outputDir      string
	checkpointFile string
	feedSource     string
	maxPages       int
	channelIDs     []int64
	pageDelay      time.Duration
	downloadDelay  time.Duration
	accountName    string
	noBackup       bool
	notify         bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync new posts from every subscribed channel",
	Long: `Sync new posts from every subscribed channel.

The session cookie is taken from, in order:
  - --account (a stored account, see 'fcsync auth login')
  - session.session_id in the config file or FCSYNC_SESSION_ID
  - the most recently stored account`,
	Example: `  # Sync everything into ./fanclubs
  fcsync sync --output ./fanclubs

  # Only two channels, reading feeds from the JSON endpoint
  fcsync sync --channel 1234 --channel 5678 --feed-source api

  # Use a specific stored account
  fcsync sync --account main`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	registerSyncFlags(syncCmd)
}

// registerSyncFlags binds the sync flags to cmd. The root command carries
// them too, so a bare "fcsync" syncs.
func registerSyncFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "root directory for synced posts")
	cmd.Flags().StringVar(&checkpointFile, "checkpoint-file", "", "checkpoint file (default: platform data directory)")
	cmd.Flags().StringVar(&feedSource, "feed-source", "", "feed source: html or api")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum feed pages per channel (0 = unlimited)")
	cmd.Flags().Int64SliceVar(&channelIDs, "channel", nil, "only sync these channel ids (repeatable)")
	cmd.Flags().DurationVar(&pageDelay, "page-delay", 0, "minimum delay between feed page requests")
	cmd.Flags().DurationVar(&downloadDelay, "download-delay", 0, "minimum delay between content downloads")
	cmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not back up the checkpoint file before syncing")
	cmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
}

// syncFlags collects the flags the user actually set
func syncFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	changed := cmd.Flags().Changed

	if changed("output") {
		flags["output"] = outputDir
	}
	if changed("checkpoint-file") {
		flags["checkpoint-file"] = checkpointFile
	}
	if changed("feed-source") {
		flags["feed-source"] = feedSource
	}
	if changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if changed("channel") {
		flags["channels"] = channelIDs
	}
	if changed("page-delay") {
		flags["page-delay"] = pageDelay
	}
	if changed("download-delay") {
		flags["download-delay"] = downloadDelay
	}
	return flags
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, syncFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if noBackup {
		cfg.Checkpoint.Backup = false
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential store unavailable")
		manager = auth.NewManagerWithStores(auth.NewEnvironmentStore())
	}
	account, err := resolveSession(cfg, accountName, manager)
	if err != nil {
		ui.PrintError("No session cookie found", err.Error())
		fmt.Println("\nStore one with:")
		fmt.Println("  fcsync auth login")
		return err
	}
	log.WithField("account", account.Name).Info("Using session")

	runner, err := buildRunner(cfg, account, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	report, runErr := runner.Run(ctx)
	log.WithFields(map[string]interface{}{
		"duration":     time.Since(started).Round(time.Second).String(),
		"channels":     len(report.Results),
		"materialized": report.Materialized(),
		"unchanged":    report.Unchanged(),
	}).Info("Sync finished")

	if quiet {
		fmt.Println(ui.Summary(report))
	} else {
		fmt.Println()
		ui.RenderReport(os.Stdout, report)
	}
	if notify {
		ui.NewNotifier().NotifyReport(report)
	}

	switch {
	case runErr != nil && errs.IsType(runErr, errs.ErrorTypeAuthExpired):
		ui.PrintWarning("The session cookie was rejected", "run 'fcsync auth login' with a fresh _session_id")
		return runErr
	case runErr != nil:
		return runErr
	case report.Failed() > 0:
		return fmt.Errorf("%d channel(s) failed", report.Failed())
	}
	return nil
}

// sessionSource is the part of auth.Manager used to pick a session
type sessionSource interface {
	Retrieve(name string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// resolveSession picks the session cookie: a named stored account, then the
// configured cookie, then the most recently stored account
func resolveSession(cfg *config.Config, name string, store sessionSource) (*auth.Account, error) {
	var account *auth.Account
	var err error

	switch {
	case name != "":
		account, err = store.Retrieve(name)
	case cfg.Session.SessionID != "":
		account = &auth.Account{Name: "config", SessionID: cfg.Session.SessionID}
	default:
		account, err = store.RetrieveDefault()
	}
	if err != nil {
		return nil, err
	}

	if account.UserAgent == "" {
		account.UserAgent = cfg.Session.UserAgent
	}
	return account, nil
}

// newClient builds the session client every remote component shares
func newClient(cfg *config.Config, account *auth.Account, log logger.Logger) (*fanclub.Client, error) {
	return fanclub.NewClient(fanclub.Options{
		BaseURL:   cfg.Session.BaseURL,
		SessionID: account.SessionID,
		UserAgent: account.UserAgent,
		Timeout:   cfg.Session.Timeout,
		Retry:     retry.FromSettings(cfg.Retry, log),
		Logger:    log,
	})
}

// checkpointStore opens the configured checkpoint file
func checkpointStore(cfg *config.Config, log logger.Logger) (*checkpoint.Store, error) {
	path := cfg.Checkpoint.File
	if path == "" {
		var err error
		if path, err = checkpoint.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return checkpoint.NewStore(path, log)
}

// buildRunner wires the sync components from configuration
func buildRunner(cfg *config.Config, account *auth.Account, log logger.Logger) (*syncer.Runner, error) {
	client, err := newClient(cfg, account, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	var feed syncer.FeedSource = fanclub.NewMarkupFeed(client)
	if cfg.Feed.Source == config.FeedSourceAPI {
		feed = fanclub.NewAPIFeed(client)
	}

	manager, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	store, err := checkpointStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	channels := syncer.NewChannelSyncer(client, feed, ratelimit.New(cfg.RateLimit.PageDelay), cfg.Feed.MaxPages, log)
	posts := syncer.NewPostSyncer(manager, downloader.New(client, ratelimit.New(cfg.RateLimit.DownloadDelay), log), log)

	return syncer.NewRunner(
		client,
		fanclub.NewDirectory(client),
		channels,
		client,
		posts,
		store,
		syncer.RunnerOptions{
			Channels: cfg.Feed.Channels,
			Backup:   cfg.Checkpoint.Backup,
		},
		log,
	), nil
}
