package workspace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
)

var batchEndpoints = map[ServiceType]string{
	ServiceGmail:    "https://gmail.googleapis.com/batch/gmail/v1",
	ServiceDrive:    "https://www.googleapis.com/batch/drive/v3",
	ServiceCalendar: "https://www.googleapis.com/batch/calendar/v3",
	ServiceSheets:   "https://sheets.googleapis.com/batch",
	ServiceDocs:     "https://docs.googleapis.com/batch",
}

// BatchEndpoint returns the batch URL of a service.
func BatchEndpoint(service ServiceType) (string, error) {
	endpoint, ok := batchEndpoints[service]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownService, service)
	}
	return endpoint, nil
}

// BatchEndpointAt returns the batch URL of a service on another host, such
// as a client's configured endpoint. An empty base means BatchEndpoint.
func BatchEndpointAt(service ServiceType, base string) (string, error) {
	endpoint, err := BatchEndpoint(service)
	if err != nil || base == "" {
		return endpoint, err
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(base, "/") + u.Path, nil
}

// BatchRequestManager collects API calls and sends them as one
// multipart/mixed request.
type BatchRequestManager struct {
	mu       sync.Mutex
	maxSize  int
	requests []domain.BatchRequest
	log      zerolog.Logger
}

// NewBatchRequestManager creates a batch holding at most maxSize calls.
// Sizes outside 1..domain.MaxBatchSize use domain.MaxBatchSize.
func NewBatchRequestManager(maxSize int) *BatchRequestManager {
	if maxSize <= 0 || maxSize > domain.MaxBatchSize {
		maxSize = domain.MaxBatchSize
	}
	return &BatchRequestManager{
		maxSize: maxSize,
		log:     logger.WithComponent("gspace.batch"),
	}
}

// Add queues a request. An empty ID is replaced by a random one, which is
// returned.
func (b *BatchRequestManager) Add(req domain.BatchRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.requests) >= b.maxSize {
		b.log.Warn().Int("max", b.maxSize).Msg("Batch is full")
		return "", fmt.Errorf("%w: %d requests", domain.ErrBatchFull, b.maxSize)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	b.requests = append(b.requests, req)
	b.log.Debug().Str("request_id", req.ID).Msg("Added request to batch")
	return req.ID, nil
}

// AddGet queues a GET request.
func (b *BatchRequestManager) AddGet(id, url string, headers map[string]string) (string, error) {
	return b.Add(domain.BatchRequest{ID: id, Method: http.MethodGet, URL: url, Headers: headers})
}

// AddPost queues a POST request with a JSON body.
func (b *BatchRequestManager) AddPost(id, url string, body any, headers map[string]string) (string, error) {
	return b.Add(domain.BatchRequest{ID: id, Method: http.MethodPost, URL: url, Headers: headers, Body: body})
}

// AddPut queues a PUT request with a JSON body.
func (b *BatchRequestManager) AddPut(id, url string, body any, headers map[string]string) (string, error) {
	return b.Add(domain.BatchRequest{ID: id, Method: http.MethodPut, URL: url, Headers: headers, Body: body})
}

// AddDelete queues a DELETE request.
func (b *BatchRequestManager) AddDelete(id, url string, headers map[string]string) (string, error) {
	return b.Add(domain.BatchRequest{ID: id, Method: http.MethodDelete, URL: url, Headers: headers})
}

// AddPatch queues a PATCH request with a JSON body.
func (b *BatchRequestManager) AddPatch(id, url string, body any, headers map[string]string) (string, error) {
	return b.Add(domain.BatchRequest{ID: id, Method: http.MethodPatch, URL: url, Headers: headers, Body: body})
}

// Len returns the number of queued requests.
func (b *BatchRequestManager) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// IsFull reports whether no more requests can be added.
func (b *BatchRequestManager) IsFull() bool {
	return b.RemainingCapacity() == 0
}

// RemainingCapacity returns how many requests can still be added.
func (b *BatchRequestManager) RemainingCapacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return max(0, b.maxSize-len(b.requests))
}

// Clear drops all queued requests.
func (b *BatchRequestManager) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

// Payload encodes the queued requests as a multipart/mixed body and returns
// its Content-Type.
func (b *BatchRequestManager) Payload() (string, []byte, error) {
	b.mu.Lock()
	requests := append([]domain.BatchRequest(nil), b.requests...)
	b.mu.Unlock()

	if len(requests) == 0 {
		return "", nil, domain.ErrBatchEmpty
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, req := range requests {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/http")
		header.Set("Content-ID", "<"+req.ID+">")
		part, err := mw.CreatePart(header)
		if err != nil {
			return "", nil, fmt.Errorf("create batch part: %w", err)
		}
		if err := writeInnerRequest(part, req); err != nil {
			return "", nil, fmt.Errorf("encode request %s: %w", req.ID, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", nil, fmt.Errorf("close batch payload: %w", err)
	}
	return "multipart/mixed; boundary=" + mw.Boundary(), buf.Bytes(), nil
}

func writeInnerRequest(w io.Writer, req domain.BatchRequest) error {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return err
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s HTTP/1.1\r\n", req.Method, req.URL)

	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %s\r\n", k, req.Headers[k])
	}
	if body != nil {
		if _, ok := req.Headers["Content-Type"]; !ok {
			sb.WriteString("Content-Type: application/json\r\n")
		}
		fmt.Fprintf(&sb, "Content-Length: %d\r\n", len(body))
	}
	sb.WriteString("\r\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ParseResponse decodes a multipart/mixed batch response. Parts that cannot
// be parsed are logged and skipped.
func (b *BatchRequestManager) ParseResponse(contentType string, body io.Reader) ([]domain.BatchResponse, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parse batch content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, fmt.Errorf("unexpected batch content type %q", contentType)
	}

	var responses []domain.BatchResponse
	mr := multipart.NewReader(body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return responses, fmt.Errorf("read batch part: %w", err)
		}

		resp, err := parsePart(part, len(responses))
		_ = part.Close()
		if err != nil {
			b.log.Error().Err(err).Msg("Error parsing batch response part")
			continue
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func parsePart(part *multipart.Part, index int) (domain.BatchResponse, error) {
	httpResp, err := http.ReadResponse(bufio.NewReader(part), nil)
	if err != nil {
		return domain.BatchResponse{}, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return domain.BatchResponse{}, err
	}

	resp := domain.BatchResponse{
		RequestID:  responseID(part.Header.Get("Content-ID"), index),
		StatusCode: httpResp.StatusCode,
		Headers:    make(map[string]string, len(httpResp.Header)),
	}
	for k := range httpResp.Header {
		resp.Headers[k] = httpResp.Header.Get(k)
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(trimmed, &decoded); err == nil {
			resp.Body = decoded
		} else {
			resp.Body = map[string]any{"raw": string(trimmed)}
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Error = errorMessage(resp.Body)
	}
	return resp, nil
}

// responseID strips the "<response-...>" wrapping Google puts around the
// Content-ID of the matching request.
func responseID(contentID string, index int) string {
	id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(contentID), "<"), ">")
	id = strings.TrimPrefix(id, "response-")
	if id == "" {
		return fmt.Sprintf("req_%d", index)
	}
	return id
}

func errorMessage(body map[string]any) string {
	if errObj, ok := body["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if raw, ok := body["raw"].(string); ok && raw != "" {
		return raw
	}
	return "Unknown error"
}

// Execute sends the queued requests to endpoint and parses the answer.
// The queue is left untouched so callers decide when to Clear.
func (b *BatchRequestManager) Execute(ctx context.Context, client *http.Client, endpoint string) ([]domain.BatchResponse, error) {
	contentType, payload, err := b.Payload()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create batch request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	b.log.Debug().Int("requests", b.Len()).Str("endpoint", endpoint).Msg("Executing batch request")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("batch request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	responses, err := b.ParseResponse(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return responses, err
	}
	b.log.Debug().Int("responses", len(responses)).Msg("Batch request completed")
	return responses, nil
}

// Batch is a BatchRequestManager bound to an endpoint and an authorised
// HTTP client. Send goes through the service's rate limit and retry policy.
type Batch struct {
	*BatchRequestManager
	client   *http.Client
	endpoint string
	limiter  *APILimiter
}

// NewBatch creates a batch sent to endpoint with client. A nil limiter
// sends without rate limiting or retries.
func NewBatch(client *http.Client, endpoint string, limiter *APILimiter, maxSize int) *Batch {
	return &Batch{
		BatchRequestManager: NewBatchRequestManager(maxSize),
		client:              client,
		endpoint:            endpoint,
		limiter:             limiter,
	}
}

// Endpoint returns the URL the batch is posted to.
func (b *Batch) Endpoint() string {
	return b.endpoint
}

// Send executes the queued requests and clears the queue on success.
func (b *Batch) Send(ctx context.Context) ([]domain.BatchResponse, error) {
	send := func(ctx context.Context) ([]domain.BatchResponse, error) {
		return b.Execute(ctx, b.client, b.endpoint)
	}
	var (
		responses []domain.BatchResponse
		err       error
	)
	if b.limiter != nil {
		responses, err = Call(ctx, b.limiter, "batch", send)
	} else {
		responses, err = send(ctx)
	}
	if err != nil {
		return nil, err
	}
	b.Clear()
	return responses, nil
}

// BatchResponseError returns the error of a failed batch response, mapped
// like any other API error, or nil when the call succeeded.
func BatchResponseError(resp domain.BatchResponse) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	return WrapError(&googleapi.Error{Code: resp.StatusCode, Message: resp.Error})
}

// DecodeBatchBody converts the JSON body of a batch response into v.
func DecodeBatchBody(resp domain.BatchResponse, v any) error {
	data, err := json.Marshal(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
