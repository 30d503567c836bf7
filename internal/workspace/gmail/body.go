package gmail

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"google.golang.org/api/gmail/v1"
)

var (
	blockClose  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	blockOpen   = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	lineBreaks  = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	multiSpaces = regexp.MustCompile(`[ \t]+`)
	textPolicy  = bluemonday.StrictPolicy()
)

// Header returns the first header value matching name, case-insensitively.
func Header(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// PlainTextBody returns the text/plain body of a full-format message. When
// the message has only an HTML body the markup is stripped.
func PlainTextBody(msg *gmail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	if text, ok := findPart(msg.Payload, "text/plain"); ok {
		return text
	}
	if markup, ok := findPart(msg.Payload, "text/html"); ok {
		return StripHTML(markup)
	}
	return ""
}

// findPart walks the MIME tree depth first and decodes the first part with
// the given type. Attachments are ignored.
func findPart(part *gmail.MessagePart, mimeType string) (string, bool) {
	if part.Filename == "" && strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if data, err := decodeBody(part.Body.Data); err == nil {
			return string(data), true
		}
	}
	for _, child := range part.Parts {
		if text, ok := findPart(child, mimeType); ok {
			return text, true
		}
	}
	return "", false
}

// decodeBody decodes base64url body data, with or without padding.
func decodeBody(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

// StripHTML converts HTML markup to readable text, keeping block elements on
// their own lines.
func StripHTML(markup string) string {
	markup = blockOpen.ReplaceAllString(markup, "\n")
	markup = blockClose.ReplaceAllString(markup, "\n")
	markup = lineBreaks.ReplaceAllString(markup, "\n")

	text := html.UnescapeString(textPolicy.Sanitize(markup))
	text = multiSpaces.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// WebURL returns the Gmail web link for a message.
func WebURL(messageID string) string {
	if messageID == "" {
		return ""
	}
	return "https://mail.google.com/mail/u/0/#all/" + messageID
}
