package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace"
)

// Email describes an outgoing message.
type Email struct {
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo string
	Subject string
	Body    string
	// HTML sends Body as text/html instead of text/plain.
	HTML bool
	// Attachments are file paths. Missing files are skipped.
	Attachments []string
}

// SendEmail composes a MIME message and sends it.
func (s *Service) SendEmail(ctx context.Context, userID string, email Email) (*gmail.Message, error) {
	if len(email.To) == 0 {
		return nil, fmt.Errorf("recipient: %w", domain.ErrInvalidInput)
	}
	s.log.Info().Strs("to", email.To).Msg("sending email")

	raw, err := s.compose(email)
	if err != nil {
		return nil, fmt.Errorf("compose email: %w", err)
	}
	return s.send(ctx, userID, raw)
}

// SendSimpleEmail sends a plain text message without attachments.
func (s *Service) SendSimpleEmail(ctx context.Context, userID string, to []string, subject, body string) (*gmail.Message, error) {
	if len(to) == 0 {
		return nil, fmt.Errorf("recipient: %w", domain.ErrInvalidInput)
	}

	recipients, err := addressList("to", to)
	if err != nil {
		return nil, err
	}
	if err := checkHeaderValue("subject", subject); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "To", recipients)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", subject))
	writeHeader(&buf, "Content-Type", `text/plain; charset="utf-8"`)
	writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")
	if err := writeQuotedPrintable(&buf, body); err != nil {
		return nil, fmt.Errorf("compose email: %w", err)
	}
	return s.send(ctx, userID, buf.Bytes())
}

func (s *Service) send(ctx context.Context, userID string, raw []byte) (*gmail.Message, error) {
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	sent, err := workspace.Call(ctx, s.limiter, "messages.send", func(ctx context.Context) (*gmail.Message, error) {
		return s.api.Users.Messages.Send(user(userID), msg).Context(ctx).Do()
	})
	if err != nil {
		s.log.Error().Err(err).Msg("send email failed")
		return nil, fmt.Errorf("send email: %w", err)
	}
	s.log.Info().Str("message_id", sent.Id).Msg("sent email")
	return sent, nil
}

// compose renders email as an RFC 2822 multipart/mixed message.
func (s *Service) compose(email Email) ([]byte, error) {
	to, err := addressList("to", email.To)
	if err != nil {
		return nil, err
	}
	cc, err := addressList("cc", email.Cc)
	if err != nil {
		return nil, err
	}
	bcc, err := addressList("bcc", email.Bcc)
	if err != nil {
		return nil, err
	}
	var replyTo string
	if email.ReplyTo != "" {
		if replyTo, err = addressList("reply-to", []string{email.ReplyTo}); err != nil {
			return nil, err
		}
	}
	if err := checkHeaderValue("subject", email.Subject); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	subtype := "plain"
	if email.HTML {
		subtype = "html"
	}
	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("text/%s; charset=\"utf-8\"", subtype)},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeQuotedPrintable(textPart, email.Body); err != nil {
		return nil, err
	}

	for _, path := range email.Attachments {
		if err := s.attach(mw, path); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "To", to)
	if cc != "" {
		writeHeader(&buf, "Cc", cc)
	}
	if bcc != "" {
		writeHeader(&buf, "Bcc", bcc)
	}
	if replyTo != "" {
		writeHeader(&buf, "Reply-To", replyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	writeHeader(&buf, "Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	buf.WriteString("\r\n")
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// attach adds a base64 encoded file part. A missing file is logged and skipped.
func (s *Service) attach(mw *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Str("path", path).Msg("attachment file not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read attachment %s: %w", path, err)
	}

	name := filepath.Base(path)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(workspace.ContentType(path), map[string]string{"name": name})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	if err := writeBase64Lines(part, data); err != nil {
		return err
	}
	s.log.Debug().Str("name", name).Msg("added attachment")
	return nil
}

// addressList parses each entry as an RFC 5322 address list and renders
// the result as a single header value. Line breaks are rejected.
func addressList(field string, entries []string) (string, error) {
	var out []string
	for _, entry := range entries {
		if err := checkHeaderValue(field, entry); err != nil {
			return "", err
		}
		addrs, err := mail.ParseAddressList(entry)
		if err != nil {
			return "", fmt.Errorf("%s %q: %w", field, entry, domain.ErrInvalidInput)
		}
		for _, addr := range addrs {
			if addr.Name == "" {
				out = append(out, addr.Address)
				continue
			}
			out = append(out, addr.String())
		}
	}
	return strings.Join(out, ", "), nil
}

func checkHeaderValue(field, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%s contains a line break: %w", field, domain.ErrInvalidInput)
	}
	return nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := io.WriteString(qp, s); err != nil {
		return err
	}
	return qp.Close()
}

// writeBase64Lines writes data as base64 wrapped at 76 characters.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(w, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := io.WriteString(w, encoded+"\r\n")
	return err
}
