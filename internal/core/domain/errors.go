package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownService indicates a Workspace service name that has no scope table.
	ErrUnknownService = errors.New("unknown service")

	// ErrUnknownAccessLevel indicates an access level the service does not define.
	ErrUnknownAccessLevel = errors.New("unknown access level")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("client closed")

	// Authentication Errors.

	// ErrUnsupportedAuthType indicates an auth type other than OAuth2 or service_account.
	ErrUnsupportedAuthType = errors.New("unsupported authentication type")

	// ErrCredentialsNotFound indicates the credentials file does not exist.
	ErrCredentialsNotFound = errors.New("credentials file not found")

	// ErrInvalidCredentials indicates the credentials file is not a usable JSON key.
	ErrInvalidCredentials = errors.New("invalid credentials file")

	// ErrAuthRequired indicates no stored tokens exist for the user.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the access token has expired and cannot be refreshed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrTokenRefreshFailed indicates token refresh operation failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrDecryptFailed indicates stored tokens could not be decrypted,
	// usually because the password changed.
	ErrDecryptFailed = errors.New("token decryption failed")

	// Batch Errors.

	// ErrBatchFull indicates the batch already holds the maximum number of requests.
	ErrBatchFull = errors.New("batch is full")

	// ErrBatchEmpty indicates an attempt to send a batch with no requests.
	ErrBatchEmpty = errors.New("batch is empty")

	// Webhook Errors.

	// ErrInvalidSignature indicates a webhook body failed HMAC verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
