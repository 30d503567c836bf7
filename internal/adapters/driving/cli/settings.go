package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure credentials, token storage, retries and the webhook
receiver.

Use subcommands to change a single setting or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "token-backend <backend>",
	Short: "Set the token storage backend",
	Long: `Set where OAuth2 tokens are stored.

Available backends:
  encrypted - Encrypted files, keyed by GSPACES_TOKEN_PASSWORD (default)
  file      - Plain JSON files
  sqlite    - SQLite database
  memory    - Not persisted`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsBackend,
}

var settingsCredentialsCmd = &cobra.Command{
	Use:   "credentials <path>",
	Short: "Set the credentials file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsCredentials,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsBackendCmd)
	settingsCmd.AddCommand(settingsCredentialsCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Auth]")
	credentials := settings.Auth.CredentialsPath
	if credentials == "" {
		credentials = "(not set)"
	}
	cmd.Printf("  Credentials: %s\n", credentials)
	cmd.Printf("  Type: %s\n", settings.Auth.Type)
	if len(settings.Auth.Scopes) > 0 {
		cmd.Printf("  Scopes: %s\n", strings.Join(settings.Auth.Scopes, ", "))
	} else {
		cmd.Println("  Scopes: (defaults)")
	}
	cmd.Printf("  Callback port: %d\n", settings.Auth.CallbackPort)
	if settings.Auth.Subject != "" {
		cmd.Printf("  Subject: %s\n", settings.Auth.Subject)
	}
	cmd.Println()

	cmd.Println("[Tokens]")
	cmd.Printf("  Backend: %s\n", settings.Tokens.Backend.Description())
	if settings.Tokens.Dir != "" {
		cmd.Printf("  Directory: %s\n", settings.Tokens.Dir)
	}
	cmd.Printf("  User: %s\n", settings.Tokens.User)
	cmd.Printf("  Auto refresh: %t\n", settings.Tokens.AutoRefresh)
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Max retries: %d\n", settings.Retry.MaxRetries)
	cmd.Printf("  Strategy: %s\n", settings.Retry.Strategy)
	cmd.Printf("  Delay: %s to %s\n", settings.Retry.BaseDelay, settings.Retry.MaxDelay)
	cmd.Println()

	cmd.Println("[Webhook]")
	cmd.Printf("  Address: %s\n", settings.Webhook.Addr)
	cmd.Printf("  Requests per minute: %d\n", settings.Webhook.RequestsPerMinute)
	if settings.Webhook.VerificationToken != "" {
		cmd.Printf("  Verification token: %s\n", maskAPIKey(settings.Webhook.VerificationToken))
	} else {
		cmd.Println("  Verification token: (not set)")
	}
	cmd.Println()

	if settings.Auth.CredentialsPath == "" && os.Getenv(EnvCredentials) == "" {
		cmd.Println("Warning: no credentials file configured.")
		cmd.Println("Run 'gspace settings wizard' or set " + EnvCredentials + ".")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cmd.Println("gspace Settings Wizard")
	cmd.Println("======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Credentials
	cmd.Println("Step 1: Credentials File")
	cmd.Println("------------------------")
	cmd.Printf("Path to the OAuth2 client or service account JSON [%s]: ", settings.Auth.CredentialsPath)
	if path := readLine(reader); path != "" {
		settings.Auth.CredentialsPath = path
	}
	cmd.Println()

	// Step 2: Authentication type
	cmd.Println("Step 2: Authentication Type")
	cmd.Println("---------------------------")
	types := []domain.AuthType{domain.AuthTypeOAuth2, domain.AuthTypeServiceAccount}
	current := 1
	for i, t := range types {
		cmd.Printf("  %d. %s\n", i+1, t)
		if t == settings.Auth.Type {
			current = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	settings.Auth.Type = types[parseChoice(readLine(reader), len(types), current)-1]
	if settings.Auth.Type == domain.AuthTypeServiceAccount {
		cmd.Printf("User to impersonate (blank for none) [%s]: ", settings.Auth.Subject)
		if subject := readLine(reader); subject != "" {
			settings.Auth.Subject = subject
		}
	}
	cmd.Println()

	// Step 3: Token backend
	cmd.Println("Step 3: Token Storage")
	cmd.Println("---------------------")
	backends := domain.AllTokenBackends()
	current = 1
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
		if b == settings.Tokens.Backend {
			current = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	settings.Tokens.Backend = backends[parseChoice(readLine(reader), len(backends), current)-1]
	cmd.Println()

	// Step 4: Webhook verification
	cmd.Println("Step 4: Webhook Verification Token")
	cmd.Println("----------------------------------")
	cmd.Print("Enter token (blank to keep current): ")
	token := readPassword(cmd, reader)
	cmd.Println()
	if token != "" {
		settings.Webhook.VerificationToken = token
		cmd.Printf("Token set: %s\n", maskAPIKey(token))
	}
	cmd.Println()

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if settings.Auth.Type == domain.AuthTypeOAuth2 {
		cmd.Println("Run 'gspace auth login' to sign in.")
	} else {
		cmd.Println("All settings are saved.")
	}
	return nil
}

func runSettingsBackend(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	backend := domain.TokenBackend(strings.ToLower(args[0]))
	if err := settingsService.SetTokenBackend(backend); err != nil {
		return fmt.Errorf("failed to set token backend: %w", err)
	}
	cmd.Printf("Token backend set to: %s\n", backend.Description())
	cmd.Println("Existing tokens are not migrated; sign in again with 'gspace auth login'.")
	return nil
}

func runSettingsCredentials(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}
	if err := settingsService.SetCredentialsPath(args[0]); err != nil {
		return fmt.Errorf("failed to set credentials: %w", err)
	}
	cmd.Printf("Credentials file set to: %s\n", args[0])
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when the command reads from a terminal
// and falls back to a plain line otherwise.
func readPassword(cmd *cobra.Command, reader *bufio.Reader) string {
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
