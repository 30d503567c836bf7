package domain

// MaxBatchSize is the largest number of calls Google accepts in one batch.
const MaxBatchSize = 100

// BatchRequest is one HTTP call inside a batch.
type BatchRequest struct {
	// ID correlates the request with its response part.
	ID      string
	Method  string
	URL     string
	Headers map[string]string
	// Body is JSON encoded when non-nil.
	Body any
}

// BatchResponse is one parsed part of a batch response.
type BatchResponse struct {
	RequestID  string
	StatusCode int
	Headers    map[string]string
	// Body holds the decoded JSON body, or nil when the part had none.
	Body map[string]any
	// Error carries error.message from the body for statuses >= 400.
	Error string
}

// OK reports whether the part succeeded.
func (r BatchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
