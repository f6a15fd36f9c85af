package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"syscall"
	"time"

	"fcsync/pkg/auth"
	"fcsync/pkg/config"
	"fcsync/pkg/logger"
	"fcsync/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// defaultAccountName is used when login is given no name
const defaultAccountName = "default"

var checkStatus bool

// sessionIDPattern matches the hex _session_id cookie
var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{32,128}$`)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session cookies",
	Long: `Manage stored fanclub session cookies.

Cookies are stored in:
  - the system keychain (when available)
  - an encrypted file with PBKDF2 key derivation
  - FCSYNC_SESSION_ID (read-only)

Never share your session cookie or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session cookie",
	Long: `Store the _session_id cookie of a logged-in browser under a name.

You will be prompted for the cookie value (hidden as you type) and an
optional user agent.`,
	Example: `  # Store as "default"
  fcsync auth login

  # Store a second account
  fcsync auth login alt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored session cookie",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored sessions",
	Long: `List stored sessions with the cookie masked.

With --check, the session that a sync would use is verified against the
service.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&checkStatus, "check", false, "verify the active session against the service")
	statusCmd.Flags().StringVarP(&accountName, "account", "a", "", "check a specific stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := defaultAccountName
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	auth.ShowCookieExtractionGuide(os.Stdout)
	fmt.Println()

	var sessionID string
	for {
		fmt.Print("_session_id cookie value: ")
		sessionID, err = readPassword(reader)
		if err != nil {
			return fmt.Errorf("failed to read session cookie: %w", err)
		}
		fmt.Println()

		if validSessionID(sessionID) {
			break
		}
		fmt.Println("That does not look like a _session_id value (a long hex string).")
		fmt.Print("Try again? (Y/n): ")
		retry, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(retry)) == "n" {
			return fmt.Errorf("no valid session cookie entered")
		}
	}

	fmt.Print("User agent (Enter for default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	account := &auth.Account{
		Name:      name,
		SessionID: sessionID,
		UserAgent: userAgent,
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Session stored: " + name)
	fmt.Println("\nRun 'fcsync auth status --check' to verify it.")
	return nil
}

func validSessionID(s string) bool {
	return sessionIDPattern.MatchString(strings.ToLower(s))
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	ui.PrintSuccess("Session removed: " + args[0])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored sessions", "use 'fcsync auth login' to add one")
	} else {
		ui.PrintHighlight("Stored sessions")
		for _, account := range accounts {
			masked := auth.SanitizeAccount(account)
			fmt.Printf("  %-12s %s  %s\n", masked.Name, masked.SessionID,
				ui.Dim(masked.LastModified.Format(time.RFC3339)))
		}
	}

	if !checkStatus {
		return nil
	}

	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	account, err := resolveSession(cfg, accountName, manager)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, account, logger.NewNopLogger())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.Timeout)
	defer cancel()

	if err := client.CheckSession(ctx); err != nil {
		ui.PrintError("Session check failed for "+account.Name, err.Error())
		return err
	}
	ui.PrintSuccess("Session is valid: " + account.Name)
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
