package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/workspace/gmail"
)

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "List recent emails",
	Long: `List messages matching a Gmail search query.

Examples:
  # Unread mail
  gspace emails --query "is:unread"

  # Last five messages in a label
  gspace emails --label Label_12 --max 5`,
	RunE: runEmails,
}

var readEmailCmd = &cobra.Command{
	Use:   "read-email <message-id>",
	Short: "Print an email's plain text body",
	Args:  cobra.ExactArgs(1),
	RunE:  runReadEmail,
}

var sendEmailCmd = &cobra.Command{
	Use:   "send-email",
	Short: "Send an email",
	Long: `Send an email from the authenticated account.

Examples:
  gspace send-email --to bob@example.com --subject "Hello" --body "Hi Bob"
  gspace send-email --to team@example.com --subject "Report" \
    --body "<p>Attached.</p>" --html --attach report.pdf`,
	RunE: runSendEmail,
}

var (
	emailsQuery  string
	emailsMax    int
	emailsLabels []string

	sendTo      []string
	sendCc      []string
	sendBcc     []string
	sendSubject string
	sendBody    string
	sendHTML    bool
	sendAttach  []string
)

func init() {
	emailsCmd.Flags().StringVarP(&emailsQuery, "query", "q", "", "Gmail search query")
	emailsCmd.Flags().IntVar(&emailsMax, "max", 10, "maximum messages to list")
	emailsCmd.Flags().StringSliceVar(&emailsLabels, "label", nil, "label IDs to filter by")

	f := sendEmailCmd.Flags()
	f.StringSliceVar(&sendTo, "to", nil, "recipients (required)")
	f.StringSliceVar(&sendCc, "cc", nil, "carbon copy recipients")
	f.StringSliceVar(&sendBcc, "bcc", nil, "blind carbon copy recipients")
	f.StringVar(&sendSubject, "subject", "", "subject")
	f.StringVar(&sendBody, "body", "", "message body")
	f.BoolVar(&sendHTML, "html", false, "send the body as HTML")
	f.StringSliceVar(&sendAttach, "attach", nil, "files to attach")
	_ = sendEmailCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(emailsCmd)
	rootCmd.AddCommand(readEmailCmd)
	rootCmd.AddCommand(sendEmailCmd)
}

func runEmails(cmd *cobra.Command, _ []string) error {
	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Gmail(ctx)
	if err != nil {
		return err
	}
	messages, err := svc.ListMessageDetails(ctx, gmail.ListOptions{
		Query:      emailsQuery,
		LabelIDs:   emailsLabels,
		MaxResults: emailsMax,
	}, "From", "Subject", "Date")
	if err != nil {
		return err
	}

	header(cmd, "Emails")
	if len(messages) == 0 {
		cmd.Println("  No messages.")
		return nil
	}
	for i, msg := range messages {
		subject := gmail.Header(msg, "Subject")
		if subject == "" {
			subject = "(no subject)"
		}
		cmd.Printf("\n%d. %s\n", i+1, subject)
		cmd.Printf("   %s %s\n", labelStyle.Render("From:"), gmail.Header(msg, "From"))
		cmd.Printf("   %s %s\n", labelStyle.Render("Date:"), gmail.Header(msg, "Date"))
		cmd.Printf("   %s %s\n", labelStyle.Render("ID:"), msg.Id)
		if msg.Snippet != "" {
			cmd.Printf("   %s\n", truncate(msg.Snippet, 100))
		}
	}
	return nil
}

func runReadEmail(cmd *cobra.Command, args []string) error {
	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Gmail(ctx)
	if err != nil {
		return err
	}
	msg, err := svc.GetMessage(ctx, args[0], gmail.GetOptions{Format: gmail.FormatFull})
	if err != nil {
		return err
	}

	header(cmd, gmail.Header(msg, "Subject"))
	cmd.Printf("%s %s\n", labelStyle.Render("From:"), gmail.Header(msg, "From"))
	cmd.Printf("%s %s\n", labelStyle.Render("To:"), gmail.Header(msg, "To"))
	cmd.Printf("%s %s\n\n", labelStyle.Render("Date:"), gmail.Header(msg, "Date"))
	cmd.Println(gmail.PlainTextBody(msg))
	return nil
}

func runSendEmail(cmd *cobra.Command, _ []string) error {
	if len(sendTo) == 0 {
		return errors.New("at least one --to recipient is required")
	}

	gs, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer gs.Close()

	ctx := commandContext(cmd)
	svc, err := gs.Gmail(ctx)
	if err != nil {
		return err
	}
	msg, err := svc.SendEmail(ctx, "", gmail.Email{
		To:          sendTo,
		Cc:          sendCc,
		Bcc:         sendBcc,
		Subject:     sendSubject,
		Body:        sendBody,
		HTML:        sendHTML,
		Attachments: sendAttach,
	})
	if err != nil {
		return err
	}

	cmd.Println(okStyle.Render("Email sent."))
	cmd.Printf("  %s %s\n", labelStyle.Render("ID:"), msg.Id)
	return nil
}
