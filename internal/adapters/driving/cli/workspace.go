package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/workspace/docs"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Read Google Sheets",
}

var sheetsGetCmd = &cobra.Command{
	Use:   "get <spreadsheet-id> <range>",
	Short: "Print the values of a range",
	Long: `Print the values of a range in A1 notation as a table.

Examples:
  gspace sheets get 1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms "Sheet1!A1:D10"`,
	Args: cobra.ExactArgs(2),
	RunE: runSheetsGet,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Read Google Docs",
}

var docsGetCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Print a document as plain text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsGet,
}

var userInfoCmd = &cobra.Command{
	Use:   "user-info",
	Short: "Show the authenticated account",
	RunE:  runUserInfo,
}

var sheetsColumns bool

func init() {
	sheetsGetCmd.Flags().BoolVar(&sheetsColumns, "columns", false, "read the range column by column")

	sheetsCmd.AddCommand(sheetsGetCmd)
	docsCmd.AddCommand(docsGetCmd)
	rootCmd.AddCommand(sheetsCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(userInfoCmd)
}

func runSheetsGet(cmd *cobra.Command, args []string) error {
	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Sheets(ctx)
	if err != nil {
		return err
	}
	dimension := "ROWS"
	if sheetsColumns {
		dimension = "COLUMNS"
	}
	vr, err := svc.GetValues(ctx, args[0], args[1], dimension)
	if err != nil {
		return err
	}

	if len(vr.Values) == 0 {
		cmd.Println("No values in range.")
		return nil
	}

	table := tablewriter.NewTable(cmd.OutOrStdout())
	for _, row := range vr.Values {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		if err := table.Append(cells...); err != nil {
			return fmt.Errorf("render values: %w", err)
		}
	}
	return table.Render()
}

func runDocsGet(cmd *cobra.Command, args []string) error {
	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Docs(ctx)
	if err != nil {
		return err
	}
	doc, err := svc.GetDocument(ctx, args[0], "")
	if err != nil {
		return err
	}

	header(cmd, doc.Title)
	cmd.Println(docs.PlainText(doc))
	return nil
}

func runUserInfo(cmd *cobra.Command, _ []string) error {
	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	info, err := gs.UserInfo(commandContext(cmd))
	if err != nil {
		return err
	}

	header(cmd, "Account")
	cmd.Printf("  %s %s\n", labelStyle.Render("Name:"), info.Name)
	cmd.Printf("  %s %s\n", labelStyle.Render("Email:"), info.Email)
	if info.ID != "" {
		cmd.Printf("  %s %s\n", labelStyle.Render("ID:"), info.ID)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
