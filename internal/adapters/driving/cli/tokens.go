package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage stored OAuth2 tokens",
	Long: `Inspect and clean up the tokens held by the configured token backend.

Examples:
  gspace tokens list
  gspace tokens info alice@example.com
  gspace tokens cleanup`,
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users with stored tokens",
	RunE:  runTokensList,
}

var tokensInfoCmd = &cobra.Command{
	Use:   "info [user]",
	Short: "Show token details for a user",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokensInfo,
}

var tokensCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired tokens that cannot be refreshed",
	RunE:  runTokensCleanup,
}

func init() {
	tokensCmd.AddCommand(tokensListCmd)
	tokensCmd.AddCommand(tokensInfoCmd)
	tokensCmd.AddCommand(tokensCleanupCmd)
	rootCmd.AddCommand(tokensCmd)
}

func requireTokens() error {
	if tokenManager == nil {
		return errors.New("token service not configured")
	}
	return nil
}

func runTokensList(cmd *cobra.Command, _ []string) error {
	if err := requireTokens(); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	users, err := tokenManager.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	header(cmd, "Stored Tokens")
	if len(users) == 0 {
		cmd.Println("  No stored tokens.")
		return nil
	}

	table := tablewriter.NewTable(cmd.OutOrStdout())
	table.Header("User", "Status", "Expires")
	for _, user := range users {
		status, expires := "invalid", "-"
		if tokenManager.IsTokenValid(ctx, user) {
			status = "valid"
		}
		if info, err := tokenManager.GetTokenInfo(ctx, user); err == nil && !info.ExpiresAt.IsZero() {
			expires = humanize.Time(info.ExpiresAt)
		}
		if err := table.Append(user, status, expires); err != nil {
			return fmt.Errorf("render tokens: %w", err)
		}
	}
	return table.Render()
}

func runTokensInfo(cmd *cobra.Command, args []string) error {
	if err := requireTokens(); err != nil {
		return err
	}
	user := domain.DefaultUserID
	switch {
	case len(args) == 1:
		user = args[0]
	case flagUser != "":
		user = flagUser
	}

	info, err := tokenManager.GetTokenInfo(commandContext(cmd), user)
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Printf("No tokens stored for %s.\n", user)
		return nil
	}
	if err != nil {
		return fmt.Errorf("token info: %w", err)
	}

	header(cmd, "Token: "+info.UserID)
	cmd.Printf("  %s %t\n", labelStyle.Render("Access token:"), info.HasAccessToken)
	cmd.Printf("  %s %t\n", labelStyle.Render("Refresh token:"), info.HasRefreshToken)
	if !info.CreatedAt.IsZero() {
		cmd.Printf("  %s %s\n", labelStyle.Render("Created:"), info.CreatedAt.Local().Format(time.RFC1123))
	}
	if !info.ExpiresAt.IsZero() {
		state := okStyle.Render("expires " + humanize.Time(info.ExpiresAt))
		if info.IsExpired {
			state = warnStyle.Render("expired " + humanize.Time(info.ExpiresAt))
		}
		cmd.Printf("  %s %s\n", labelStyle.Render("Expiry:"), state)
	}
	return nil
}

func runTokensCleanup(cmd *cobra.Command, _ []string) error {
	if err := requireTokens(); err != nil {
		return err
	}
	n, err := tokenManager.CleanupExpiredTokens(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("cleanup tokens: %w", err)
	}
	cmd.Printf("Removed %d expired %s.\n", n, plural(n, "token", "tokens"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
