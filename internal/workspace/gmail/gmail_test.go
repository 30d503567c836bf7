package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

func newTestService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	mux.Handle("POST /batch/gmail/v1", workspacetest.Batch(mux))
	svc, err := New(context.Background(), workspacetest.Limiter(workspace.ServiceGmail), workspacetest.Server(t, mux)...)
	require.NoError(t, err)
	return svc
}

// sentMessage decodes the raw RFC 2822 message posted to messages.send.
func sentMessage(t *testing.T, r *http.Request) *mail.Message {
	t.Helper()
	var body gmail.Message
	workspacetest.Decode(t, r, &body)
	raw, err := base64.URLEncoding.DecodeString(body.Raw)
	require.NoError(t, err)
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	return msg
}

func TestListMessages_PagesAndCaps(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "is:unread", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("maxResults"))
		if r.URL.Query().Get("pageToken") == "" {
			workspacetest.JSON(w, map[string]any{
				"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
				"nextPageToken": "p2",
			})
			return
		}
		workspacetest.JSON(w, map[string]any{
			"messages": []map[string]string{{"id": "m3"}, {"id": "m4"}},
		})
	})
	svc := newTestService(t, mux)

	msgs, err := svc.ListMessages(context.Background(), ListOptions{Query: "is:unread", MaxResults: 3})

	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[2].Id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListMessages_StopsWithoutNextPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/someone@example.com/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"INBOX", "STARRED"}, r.URL.Query()["labelIds"])
		assert.Equal(t, "true", r.URL.Query().Get("includeSpamTrash"))
		workspacetest.JSON(w, map[string]any{"messages": []map[string]string{{"id": "m1"}}})
	})
	svc := newTestService(t, mux)

	msgs, err := svc.ListMessages(context.Background(), ListOptions{
		UserID:           "someone@example.com",
		LabelIDs:         []string{"INBOX", "STARRED"},
		IncludeSpamTrash: true,
	})

	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestListMessageDetails_KeepsOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{
			"messages": []map[string]string{{"id": "a"}, {"id": "b"}, {"id": "c"}},
		})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FormatMetadata, r.URL.Query().Get("format"))
		assert.Equal(t, []string{"Subject"}, r.URL.Query()["metadataHeaders"])
		id := r.PathValue("id")
		workspacetest.JSON(w, map[string]any{
			"id": id,
			"payload": map[string]any{
				"headers": []map[string]string{{"name": "Subject", "value": "subject " + id}},
			},
		})
	})
	svc := newTestService(t, mux)

	msgs, err := svc.ListMessageDetails(context.Background(), ListOptions{}, "Subject")

	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, msgs[i].Id)
		assert.Equal(t, "subject "+id, Header(msgs[i], "subject"))
	}
}

func TestListMessageDetails_PropagatesFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{"messages": []map[string]string{{"id": "a"}, {"id": "gone"}}})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "gone" {
			workspacetest.Error(w, http.StatusNotFound, "Not Found")
			return
		}
		workspacetest.JSON(w, map[string]any{"id": r.PathValue("id")})
	})
	svc := newTestService(t, mux)

	_, err := svc.ListMessageDetails(context.Background(), ListOptions{})

	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestBatchGetMessages_SplitsIntoBatches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/{user}/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bob@example.com", r.PathValue("user"))
		assert.Equal(t, []string{"From", "To", "Subject", "Date"}, r.URL.Query()["metadataHeaders"])
		workspacetest.JSON(w, map[string]any{"id": r.PathValue("id")})
	})
	var batches atomic.Int32
	replay := workspacetest.Batch(mux)
	mux.HandleFunc("POST /batch/gmail/v1", func(w http.ResponseWriter, r *http.Request) {
		batches.Add(1)
		replay(w, r)
	})
	svc, err := New(context.Background(), workspacetest.Limiter(workspace.ServiceGmail), workspacetest.Server(t, mux)...)
	require.NoError(t, err)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%03d", i)
	}
	msgs, err := svc.BatchGetMessages(context.Background(), "bob@example.com", ids)

	require.NoError(t, err)
	require.Len(t, msgs, len(ids))
	for i, msg := range msgs {
		assert.Equal(t, ids[i], msg.Id)
	}
	assert.Equal(t, int32(3), batches.Load())
}

func TestBatchGetMessages_Empty(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	msgs, err := svc.BatchGetMessages(context.Background(), "", nil)

	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBatchGetMessages_EmptyID(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.BatchGetMessages(context.Background(), "", []string{"a", ""})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FormatFull, r.URL.Query().Get("format"))
		assert.Empty(t, r.URL.Query()["metadataHeaders"])
		workspacetest.JSON(w, map[string]any{"id": r.PathValue("id"), "snippet": "hello"})
	})
	svc := newTestService(t, mux)

	msg, err := svc.GetMessage(context.Background(), "m1", GetOptions{MetadataHeaders: []string{"From"}})

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Snippet)
}

func TestGetMessage_EmptyID(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.GetMessage(context.Background(), "", GetOptions{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendEmail_ComposesMultipart(t *testing.T) {
	dir := t.TempDir()
	attachment := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(attachment, []byte("quarterly numbers"), 0o600))

	var got *mail.Message
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		got = sentMessage(t, r)
		workspacetest.JSON(w, map[string]any{"id": "sent-1"})
	})
	svc := newTestService(t, mux)

	sent, err := svc.SendEmail(context.Background(), "", Email{
		To:          []string{"a@example.com", "b@example.com"},
		Cc:          []string{"c@example.com"},
		ReplyTo:     "reply@example.com",
		Subject:     "Report",
		Body:        "<p>See attached</p>",
		HTML:        true,
		Attachments: []string{attachment, filepath.Join(dir, "missing.pdf")},
	})

	require.NoError(t, err)
	assert.Equal(t, "sent-1", sent.Id)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com, b@example.com", got.Header.Get("To"))
	assert.Equal(t, "c@example.com", got.Header.Get("Cc"))
	assert.Equal(t, "reply@example.com", got.Header.Get("Reply-To"))
	assert.Equal(t, "Report", got.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(got.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(got.Body, params["boundary"])
	text, err := mr.NextPart()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text.Header.Get("Content-Type"), "text/html"))
	body, err := io.ReadAll(text)
	require.NoError(t, err)
	assert.Equal(t, "<p>See attached</p>", string(body))

	file, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "report.txt", file.FileName())
	encoded, err := io.ReadAll(file)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(decoded))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF, "missing attachment should be skipped")
}

func TestSendEmail_RequiresRecipient(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.SendEmail(context.Background(), "", Email{Subject: "x"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendSimpleEmail(t *testing.T) {
	var got *mail.Message
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		got = sentMessage(t, r)
		workspacetest.JSON(w, map[string]any{"id": "sent-2"})
	})
	svc := newTestService(t, mux)

	_, err := svc.SendSimpleEmail(context.Background(), "", []string{"a@example.com"}, "Héllo", "plain body")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Header.Get("To"))
	subject, err := new(mime.WordDecoder).DecodeHeader(got.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Héllo", subject)
	assert.True(t, strings.HasPrefix(got.Header.Get("Content-Type"), "text/plain"))
	body, err := io.ReadAll(quotedprintable.NewReader(got.Body))
	require.NoError(t, err)
	assert.Equal(t, "plain body", string(body))
}

func TestCreateLabel_DefaultsVisibility(t *testing.T) {
	var got gmail.Label
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		workspacetest.Decode(t, r, &got)
		workspacetest.JSON(w, map[string]any{"id": "Label_1", "name": got.Name})
	})
	svc := newTestService(t, mux)

	label, err := svc.CreateLabel(context.Background(), "", LabelOptions{Name: "Receipts"})

	require.NoError(t, err)
	assert.Equal(t, "Label_1", label.Id)
	assert.Equal(t, "show", got.MessageListVisibility)
	assert.Equal(t, "labelShow", got.LabelListVisibility)
}

func TestModifyLabels(t *testing.T) {
	var got gmail.ModifyMessageRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/m1/modify", func(w http.ResponseWriter, r *http.Request) {
		workspacetest.Decode(t, r, &got)
		workspacetest.JSON(w, map[string]any{"id": "m1", "labelIds": got.AddLabelIds})
	})
	svc := newTestService(t, mux)

	msg, err := svc.ModifyLabels(context.Background(), "", "m1", []string{"STARRED"}, []string{"UNREAD"})

	require.NoError(t, err)
	assert.Equal(t, []string{"STARRED"}, msg.LabelIds)
	assert.Equal(t, []string{"UNREAD"}, got.RemoveLabelIds)
}

func TestDeleteAndLabels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /gmail/v1/users/me/labels/Label_1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /gmail/v1/users/me/labels", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{"labels": []map[string]string{{"id": "INBOX"}, {"id": "SENT"}}})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/profile", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{"emailAddress": "me@example.com", "messagesTotal": 42})
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	require.NoError(t, svc.DeleteMessage(ctx, "", "m1"))
	require.NoError(t, svc.DeleteLabel(ctx, "", "Label_1"))

	labels, err := svc.ListLabels(ctx, "")
	require.NoError(t, err)
	assert.Len(t, labels, 2)

	profile, err := svc.GetProfile(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.EmailAddress)
	assert.Equal(t, int64(42), profile.MessagesTotal)
}

func TestDeleteMessage_Forbidden(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.Error(w, http.StatusForbidden, "Insufficient Permission")
	})
	svc := newTestService(t, mux)

	err := svc.DeleteMessage(context.Background(), "", "m1")

	assert.ErrorIs(t, err, workspace.ErrForbidden)
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestPlainTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *gmail.Message
		want string
	}{
		{
			name: "nil message",
			msg:  nil,
			want: "",
		},
		{
			name: "single part plain text",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: encode("hello there")},
			}},
			want: "hello there",
		},
		{
			name: "alternative prefers plain text",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<b>rich</b>")}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("plain")}},
				},
			}},
			want: "plain",
		},
		{
			name: "html only is stripped",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>Hi &amp; bye</p><p>Second</p>")}},
				},
			}},
			want: "Hi & bye\nSecond",
		},
		{
			name: "text attachment is ignored",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Filename: "notes.txt", Body: &gmail.MessagePartBody{Data: encode("attached")}},
				},
			}},
			want: "",
		},
		{
			name: "unpadded data",
			msg: &gmail.Message{Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab"))},
			}},
			want: "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainTextBody(tt.msg))
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "hello", "hello"},
		{"script removed", "<script>alert(1)</script><div>Body</div>", "Body"},
		{"line breaks", "one<br>two<br/>three", "one\ntwo\nthree"},
		{"entities decoded", "<p>5 &lt; 6</p>", "5 < 6"},
		{"spaces collapsed", "<p>a    b</p>", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}

func TestWebURL(t *testing.T) {
	assert.Equal(t, "https://mail.google.com/mail/u/0/#all/18abc", WebURL("18abc"))
	assert.Empty(t, WebURL(""))
}

func TestSendEmail_RejectsHeaderInjection(t *testing.T) {
	tests := []struct {
		name  string
		email Email
	}{
		{name: "to", email: Email{To: []string{"a@example.com\r\nBcc: x@evil.example"}}},
		{name: "cc", email: Email{To: []string{"a@example.com"}, Cc: []string{"c@example.com\nBcc: x@evil.example"}}},
		{name: "bcc", email: Email{To: []string{"a@example.com"}, Bcc: []string{"not an address"}}},
		{name: "reply-to", email: Email{To: []string{"a@example.com"}, ReplyTo: "r@example.com\r\nX-Evil: 1"}},
		{name: "subject", email: Email{To: []string{"a@example.com"}, Subject: "hi\r\nBcc: x@evil.example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
				t.Error("message with an invalid header was sent")
			})
			svc := newTestService(t, mux)

			_, err := svc.SendEmail(context.Background(), "", tt.email)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSendSimpleEmail_RejectsHeaderInjection(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.SendSimpleEmail(context.Background(), "", []string{"a@example.com"}, "hi\nBcc: x@evil.example", "body")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SendSimpleEmail(context.Background(), "", []string{"a@example.com\r\nBcc: x@evil.example"}, "hi", "body")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendSimpleEmail_FormatsNamedAddress(t *testing.T) {
	var got *mail.Message
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		got = sentMessage(t, r)
		workspacetest.JSON(w, map[string]any{"id": "sent-3"})
	})
	svc := newTestService(t, mux)

	_, err := svc.SendSimpleEmail(context.Background(), "", []string{"Bob Smith <bob@example.com>, c@example.com"}, "hi", "body")

	require.NoError(t, err)
	require.NotNil(t, got)
	addrs, err := got.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "Bob Smith", addrs[0].Name)
	assert.Equal(t, "bob@example.com", addrs[0].Address)
	assert.Equal(t, "c@example.com", addrs[1].Address)
}
