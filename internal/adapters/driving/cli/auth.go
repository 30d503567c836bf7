package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with Google",
	Long: `Sign in, check, and sign out of the Google account gspace uses.

OAuth2 credentials run the browser consent flow once; the resulting tokens
are stored with the configured token backend and refreshed automatically.
Service account keys need no login.

Examples:
  # Sign in with an OAuth2 client secret file
  gspace auth login --credentials client_secret.json

  # Request write access to Gmail and Drive
  gspace auth login --scopes gmail,drive

  # Show who is signed in
  gspace auth status`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the OAuth2 consent flow and store tokens",
	RunE:  runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and delete stored tokens",
	RunE:  runAuthLogout,
}

var authLoginForce bool

func init() {
	authLoginCmd.Flags().BoolVar(&authLoginForce, "force", false, "sign in again even when valid tokens are stored")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	mgr, err := newAuthManager(cmd, settings, true)
	if err != nil {
		return err
	}
	if mgr.AuthType() == domain.AuthTypeServiceAccount {
		cmd.Println("Service account credentials do not need a login.")
		return nil
	}
	if authLoginForce {
		if err := mgr.Login(commandContext(cmd)); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	return printAuthStatus(cmd, mgr)
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	mgr, err := newAuthManager(cmd, settings, false)
	if errors.Is(err, domain.ErrAuthRequired) {
		cmd.Println(warnStyle.Render("Not signed in."))
		cmd.Println("Run 'gspace auth login' to authenticate.")
		return nil
	}
	if err != nil {
		return err
	}
	return printAuthStatus(cmd, mgr)
}

func printAuthStatus(cmd *cobra.Command, mgr *auth.Manager) error {
	header(cmd, "Authentication")
	cmd.Printf("  %s %s\n", labelStyle.Render("Type:"), mgr.AuthType())
	cmd.Printf("  %s %s\n", labelStyle.Render("User:"), mgr.UserID())
	status := mgr.Status()
	if status == auth.StatusAuthenticated {
		status = okStyle.Render(status)
	} else {
		status = warnStyle.Render(status)
	}
	cmd.Printf("  %s %s\n", labelStyle.Render("Status:"), status)
	cmd.Printf("  %s %s\n", labelStyle.Render("Scopes:"), strings.Join(mgr.Scopes(), "\n          "))

	if info, err := mgr.UserInfo(commandContext(cmd)); err == nil {
		cmd.Printf("  %s %s <%s>\n", labelStyle.Render("Account:"), info.Name, info.Email)
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	if tokenManager == nil {
		return errors.New("token service not configured")
	}
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	// With usable credentials the tokens are also revoked at Google.
	if mgr, err := newAuthManager(cmd, settings, false); err == nil {
		if err := mgr.Logout(commandContext(cmd)); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
		cmd.Printf("Signed out %s.\n", mgr.UserID())
		return nil
	}

	user := settings.Tokens.User
	if flagUser != "" {
		user = flagUser
	}
	if user == "" {
		user = domain.DefaultUserID
	}
	if err := tokenManager.RevokeTokens(commandContext(cmd), user); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	cmd.Printf("Signed out %s.\n", user)
	return nil
}
