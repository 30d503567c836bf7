package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/client"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace/auth"
)

// openClient returns an authenticated client for a command. Tests replace it.
var openClient = func(cmd *cobra.Command) (*client.GSpace, error) {
	settings, err := currentSettings()
	if err != nil {
		return nil, err
	}
	mgr, err := newAuthManager(cmd, settings, false)
	if err != nil {
		return nil, err
	}
	return client.NewWithAuthenticator(mgr, client.Options{
		RateLimits: settings.RateLimits,
		Retry:      &settings.Retry,
	}), nil
}

func currentSettings() (*domain.AppSettings, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// authOptions merges the persistent flags over the saved settings.
func authOptions(settings *domain.AppSettings) (auth.Options, error) {
	path, err := credentialsPath(settings)
	if err != nil {
		return auth.Options{}, err
	}

	authType := settings.Auth.Type
	if flagAuthType != "" {
		authType = domain.AuthType(flagAuthType)
	}
	parsed, err := domain.ParseAuthType(string(authType))
	if err != nil {
		return auth.Options{}, err
	}

	scopes := settings.Auth.Scopes
	if len(flagScopes) > 0 {
		scopes = flagScopes
	}

	opts := auth.Options{
		CredentialsPath: path,
		Type:            parsed,
		Scopes:          scopes,
		UserID:          settings.Tokens.User,
		Subject:         settings.Auth.Subject,
		CallbackPort:    settings.Auth.CallbackPort,
	}
	if flagUser != "" {
		if parsed == domain.AuthTypeServiceAccount {
			opts.Subject = flagUser
		} else {
			opts.UserID = flagUser
		}
	}
	return opts, nil
}

func newAuthManager(cmd *cobra.Command, settings *domain.AppSettings, interactive bool) (*auth.Manager, error) {
	opts, err := authOptions(settings)
	if err != nil {
		return nil, err
	}
	if tokenManager != nil {
		opts.Tokens = tokenManager
	}
	opts.Interactive = interactive
	opts.Prompt = cmd.ErrOrStderr()

	mgr, err := auth.NewManager(commandContext(cmd), opts)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return mgr, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
