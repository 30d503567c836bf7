package cli

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/custodia-labs/gspace/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/gspace/internal/client"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/services"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

// stubAuth points every API client at a local server.
type stubAuth struct {
	opts []option.ClientOption
	info *domain.UserInfo
}

func (s *stubAuth) ClientOptions() []option.ClientOption { return s.opts }
func (s *stubAuth) IsAuthenticated() bool                { return true }
func (s *stubAuth) UserInfo(context.Context) (*domain.UserInfo, error) {
	return s.info, nil
}

// setupTestServices installs in-memory services and restores the previous
// ones when the test ends.
func setupTestServices(t *testing.T) {
	t.Helper()

	prevConfig, prevSettings, prevTokens, prevWebhook := configStore, settingsService, tokenManager, webhookService
	prevOpen := openClient
	prevCreds, prevUser, prevBackend := flagCredentials, flagUser, flagTokenBackend
	t.Cleanup(func() {
		configStore, settingsService, tokenManager, webhookService = prevConfig, prevSettings, prevTokens, prevWebhook
		openClient = prevOpen
		flagCredentials, flagUser, flagTokenBackend = prevCreds, prevUser, prevBackend
	})

	configStore = nil
	settingsService = services.NewSettingsService(memory.NewConfigStore())
	tokenManager = services.NewTokenManager(memory.NewTokenStore())
	webhookService = services.NewWebhookHandler("")
	flagCredentials, flagUser, flagTokenBackend = "", "", ""
	t.Setenv(EnvCredentials, "")
}

// useWorkspace makes openClient return clients that talk to handler.
func useWorkspace(t *testing.T, handler http.Handler) {
	t.Helper()
	opts := workspacetest.Server(t, handler)
	openClient = func(*cobra.Command) (*client.GSpace, error) {
		a := &stubAuth{opts: opts, info: &domain.UserInfo{ID: "42", Email: "alice@example.com", Name: "Alice"}}
		return client.NewWithAuthenticator(a, client.Options{Retry: &domain.RetrySettings{}}), nil
	}
}

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommandWithInput(t, "", args...)
}

func runCommandWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
