package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gspace/internal/workspace"
)

// exportFormats maps Google Workspace types to the format DownloadFile
// exports them as.
var exportFormats = map[string]string{
	MimeTypeGoogleDoc:    "text/plain",
	MimeTypeGoogleSheet:  "text/csv",
	MimeTypeGoogleSlides: "text/plain",
}

// UploadOptions describes a file upload.
type UploadOptions struct {
	// Path is the local file to upload. It must exist.
	Path string
	// Name defaults to the base name of Path.
	Name     string
	ParentID string
	// MimeType is guessed from the extension when empty.
	MimeType    string
	Description string
}

// UploadFile uploads a local file.
func (s *Service) UploadFile(ctx context.Context, opts UploadOptions) (*drive.File, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", opts.Path, err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:        opts.Name,
		MimeType:    opts.MimeType,
		Description: opts.Description,
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(opts.Path)
	}
	if meta.MimeType == "" {
		meta.MimeType = workspace.ContentType(opts.Path)
	}
	if opts.ParentID != "" {
		meta.Parents = []string{opts.ParentID}
	}

	s.log.Info().Str("path", opts.Path).Str("mime_type", meta.MimeType).Msg("uploading file")
	uploaded, err := workspace.Call(ctx, s.limiter, "files.create", func(ctx context.Context) (*drive.File, error) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return s.api.Files.Create(meta).
			Media(f, googleapi.ContentType(meta.MimeType)).
			Fields("id, name, mimeType, size, parents, webViewLink").
			SupportsAllDrives(true).
			Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", opts.Path, err)
	}
	s.log.Info().Str("file_id", uploaded.Id).Msg("uploaded file")
	return uploaded, nil
}

// DownloadFile writes a file's content to dest, creating parent
// directories. Google Workspace documents are exported as text or CSV.
// dest is replaced atomically. It returns the number of bytes written.
func (s *Service) DownloadFile(ctx context.Context, fileID, dest string) (int64, error) {
	meta, err := workspace.Call(ctx, s.limiter, "files.get", func(ctx context.Context) (*drive.File, error) {
		return s.api.Files.Get(fileID).Fields("id, name, mimeType").SupportsAllDrives(true).Context(ctx).Do()
	})
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", fileID, err)
	}

	if format, ok := exportFormats[meta.MimeType]; ok {
		return s.ExportFile(ctx, fileID, format, dest)
	}

	resp, err := workspace.Call(ctx, s.limiter, "files.get_media", func(ctx context.Context) (*http.Response, error) {
		return s.api.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	})
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", fileID, err)
	}
	s.log.Info().Str("file_id", fileID).Int64("bytes", n).Str("dest", dest).Msg("downloaded file")
	return n, nil
}

// ExportFile exports a Google Workspace document in mimeType to dest.
func (s *Service) ExportFile(ctx context.Context, fileID, mimeType, dest string) (int64, error) {
	resp, err := workspace.Call(ctx, s.limiter, "files.export", func(ctx context.Context) (*http.Response, error) {
		return s.api.Files.Export(fileID, mimeType).Context(ctx).Download()
	})
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	n, err := writeAtomic(dest, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", fileID, err)
	}
	s.log.Info().Str("file_id", fileID).Str("format", mimeType).Int64("bytes", n).Msg("exported file")
	return n, nil
}

// writeAtomic streams r into dest through a temporary file that replaces
// dest only once fully written.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op after a successful replace

	n, err := io.Copy(pending, r)
	if err != nil {
		return 0, fmt.Errorf("write content: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("replace %s: %w", dest, err)
	}
	return n, nil
}
