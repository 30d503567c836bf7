// Package workspacetest provides helpers for testing the API wrappers
// against a local HTTP server.
package workspacetest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/custodia-labs/gspace/internal/workspace"
)

// Limiter returns a limiter that never throttles or retries.
func Limiter(service workspace.ServiceType) *workspace.APILimiter {
	return workspace.NewAPILimiter(service,
		workspace.RateLimitConfig{RequestsPerSecond: 10000, BurstSize: 1000},
		workspace.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: workspace.RetryConstant},
	)
}

// Server starts handler and returns client options pointing at it.
func Server(t *testing.T, handler http.Handler) []option.ClientOption {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithoutAuthentication(),
	}
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a Google style error response.
func Error(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

// Decode reads a JSON request body into v.
func Decode(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("decode request body: %v", err)
	}
}

// Batch answers multipart/mixed batch requests the way Google's batch
// endpoint does, by replaying every part against inner.
func Batch(inner http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || params["boundary"] == "" {
			Error(w, http.StatusBadRequest, "not a batch request")
			return
		}

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				Error(w, http.StatusBadRequest, err.Error())
				return
			}
			req, err := http.ReadRequest(bufio.NewReader(part))
			if err != nil {
				Error(w, http.StatusBadRequest, err.Error())
				return
			}
			rec := httptest.NewRecorder()
			inner.ServeHTTP(rec, req.WithContext(r.Context()))

			header := textproto.MIMEHeader{}
			header.Set("Content-Type", "application/http")
			header.Set("Content-ID", "<response-"+trimAngles(part.Header.Get("Content-ID"))+">")
			out, err := mw.CreatePart(header)
			if err != nil {
				Error(w, http.StatusInternalServerError, err.Error())
				return
			}
			fmt.Fprintf(out, "HTTP/1.1 %d %s\r\nContent-Type: application/json\r\n\r\n", rec.Code, http.StatusText(rec.Code))
			_, _ = out.Write(rec.Body.Bytes())
		}
		_ = mw.Close()

		w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
		_, _ = w.Write(buf.Bytes())
	}
}

func trimAngles(s string) string {
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return s[1 : len(s)-1]
	}
	return s
}
