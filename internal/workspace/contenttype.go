package workspace

import (
	"mime"
	"path/filepath"
	"strings"
)

// ContentType guesses a MIME type from the file extension, defaulting to
// application/octet-stream.
func ContentType(path string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		return "application/octet-stream"
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}
