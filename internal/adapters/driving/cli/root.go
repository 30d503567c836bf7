// Package cli implements the gspace command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/gspace/internal/adapters/driven/config/file"
	"github.com/custodia-labs/gspace/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/gspace/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/gspace/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
	"github.com/custodia-labs/gspace/internal/core/services"
	"github.com/custodia-labs/gspace/internal/logger"
)

// EnvCredentials names the credentials file when --credentials is not given.
const EnvCredentials = "GOOGLE_CREDENTIALS_PATH"

// annotationNoSetup marks commands that run without the shared services.
const annotationNoSetup = "gspace.no-setup"

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

// Persistent flags.
var (
	flagCredentials  string
	flagAuthType     string
	flagScopes       []string
	flagUser         string
	flagConfigDir    string
	flagTokenBackend string
	flagVerbose      bool
)

// Services shared by the commands. They are built on first use from the
// flags and the config file; tests replace them directly.
var (
	configStore     *configfile.ConfigStore
	settingsService driving.SettingsService
	tokenManager    *services.TokenManager
	webhookService  driving.WebhookService

	closers []io.Closer
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var rootCmd = &cobra.Command{
	Use:   "gspace",
	Short: "Google Workspace from the command line",
	Long: `gspace talks to Gmail, Calendar, Drive, Sheets and Docs with one set of
credentials.

Authenticate once with 'gspace auth login' using an OAuth2 client secret file,
or pass a service account key with --auth-type service_account.

Credentials are read from --credentials, then the GOOGLE_CREDENTIALS_PATH
environment variable (a .env file is honoured), then the config file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
	PersistentPostRun: func(*cobra.Command, []string) { closeServices() },
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagCredentials, "credentials", "", "OAuth2 client or service account JSON file (default $GOOGLE_CREDENTIALS_PATH)")
	pf.StringVar(&flagAuthType, "auth-type", "", "OAuth2 or service_account")
	pf.StringSliceVar(&flagScopes, "scopes", nil, "scope URLs or service names (comma-separated)")
	pf.StringVar(&flagUser, "user", "", "user the tokens are stored under, or the subject a service account impersonates")
	pf.StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default ~/.gspace)")
	pf.StringVar(&flagTokenBackend, "token-backend", "", "token storage: encrypted, file, sqlite or memory")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	// A missing .env file is normal.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	if flagVerbose {
		logger.SetVerbose(true)
	}
	if cmd.Annotations[annotationNoSetup] != "" {
		return nil
	}
	if flagTokenBackend != "" && !domain.TokenBackend(flagTokenBackend).IsValid() {
		return fmt.Errorf("unknown token backend %q", flagTokenBackend)
	}

	if settingsService == nil {
		store, err := configfile.NewConfigStore(flagConfigDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		configStore = store
		settingsService = services.NewSettingsService(store)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if tokenManager == nil {
		store, err := openTokenStore(settings.Tokens)
		if err != nil {
			return err
		}
		tokenManager = services.NewTokenManager(store, services.WithAutoRefresh(settings.Tokens.AutoRefresh))
	}
	if webhookService == nil {
		webhookService = services.NewWebhookHandler(settings.Webhook.VerificationToken)
	}

	logger.Debug("command %s ready (token backend %s)", cmd.Name(), tokenBackend(settings))
	return nil
}

func tokenBackend(settings *domain.AppSettings) domain.TokenBackend {
	if flagTokenBackend != "" {
		return domain.TokenBackend(flagTokenBackend)
	}
	return settings.Tokens.Backend
}

// openTokenStore opens the configured token backend.
func openTokenStore(ts domain.TokenSettings) (driven.TokenStore, error) {
	backend := ts.Backend
	if flagTokenBackend != "" {
		backend = domain.TokenBackend(flagTokenBackend)
	}

	dir := ts.Dir
	if dir == "" {
		base, err := configDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "tokens")
	}

	switch backend {
	case domain.TokenBackendFile:
		return file.NewTokenStore(dir)
	case domain.TokenBackendSQLite:
		store, err := sqlite.NewStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open token database: %w", err)
		}
		closers = append(closers, store)
		return store, nil
	case domain.TokenBackendMemory:
		return memory.NewTokenStore(), nil
	default:
		return file.NewEncryptedTokenStore(dir, "")
	}
}

func configDir() (string, error) {
	if flagConfigDir != "" {
		return flagConfigDir, nil
	}
	if configStore != nil {
		return filepath.Dir(configStore.Path()), nil
	}
	return configfile.DefaultDir()
}

func closeServices() {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("close: %v", err)
		}
	}
	closers = nil
}

// credentialsPath resolves the credentials file from the flag, the
// environment and the settings, in that order. The config store applies
// the same environment override on read.
func credentialsPath(settings *domain.AppSettings) (string, error) {
	switch {
	case flagCredentials != "":
		return flagCredentials, nil
	case os.Getenv(EnvCredentials) != "":
		return os.Getenv(EnvCredentials), nil
	case settings.Auth.CredentialsPath != "":
		return settings.Auth.CredentialsPath, nil
	default:
		return "", errors.New("no credentials file: pass --credentials or set " + EnvCredentials)
	}
}

// header prints a styled section title.
func header(cmd *cobra.Command, title string) {
	cmd.Println(headerStyle.Render(title))
}
