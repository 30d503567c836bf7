package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes [name...]",
	Short: "List known OAuth2 scopes or resolve scope names",
	Long: `Without arguments, list the scopes known for each service.

With arguments, resolve service names the way --scopes does. A bare name
such as "gmail" maps to readonly access; "gmail:full" or "gmail:send" picks
an access level; full scope URLs pass through.

Examples:
  gspace scopes
  gspace scopes calendar drive:full`,
	Annotations: map[string]string{annotationNoSetup: "true"},
	RunE:        runScopes,
}

func init() {
	rootCmd.AddCommand(scopesCmd)
}

func runScopes(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		mapped, skipped := domain.MapScopes(args)
		header(cmd, "Resolved Scopes")
		for _, s := range mapped {
			cmd.Printf("  %s\n", s)
		}
		for _, s := range skipped {
			cmd.Printf("  %s %s\n", warnStyle.Render("unknown:"), s)
		}
		return nil
	}

	all := domain.AllScopes()
	header(cmd, "Scopes")
	for _, service := range domain.Services() {
		cmd.Printf("\n  %s\n", okStyle.Render(service))
		for _, s := range all[service] {
			cmd.Printf("    %s\n", s)
		}
	}
	cmd.Println()
	cmd.Println(labelStyle.Render("Defaults requested at login:"))
	for _, s := range domain.DefaultScopes {
		cmd.Printf("  %s\n", s)
	}
	return nil
}
