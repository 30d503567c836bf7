// Package drive wraps the Google Drive API: files, folders, sharing,
// revisions and comments.
package drive

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
)

// Google Workspace MIME types.
const (
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	MimeTypeShortcut     = "application/vnd.google-apps.shortcut"
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
)

const (
	// DefaultPageSize is the files.list page size.
	DefaultPageSize = 100
	// DefaultOrderBy lists recently modified files first.
	DefaultOrderBy = "modifiedTime desc"
	// DefaultListFields are returned for each listed file.
	DefaultListFields = "nextPageToken, files(id, name, mimeType, size, modifiedTime, parents, webViewLink)"
)

// Service is a rate-limited Drive client. Every call supports shared drives.
type Service struct {
	api     *drive.Service
	limiter *workspace.APILimiter
	log     zerolog.Logger
}

// New creates a Drive service. A nil limiter gets the default budget.
func New(ctx context.Context, limiter *workspace.APILimiter, opts ...option.ClientOption) (*Service, error) {
	api, err := workspace.NewDriveService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	if limiter == nil {
		limiter = workspace.DefaultAPILimiter(workspace.ServiceDrive)
	}
	return &Service{
		api:     api,
		limiter: limiter,
		log:     logger.WithComponent("gspace.drive"),
	}, nil
}

// API returns the underlying Drive client.
func (s *Service) API() *drive.Service {
	return s.api
}

// ListOptions filters ListFiles.
type ListOptions struct {
	// Query uses the Drive search syntax, e.g. "name contains 'report'".
	Query   string
	OrderBy string
	// PageSize defaults to DefaultPageSize.
	PageSize int
	// Limit caps the number of files returned. Zero returns every page.
	Limit  int
	Fields string
	// Spaces defaults to drive.
	Spaces string
	// AllDrives includes items from shared drives.
	AllDrives bool
}

// ListFiles lists files and folders.
func (s *Service) ListFiles(ctx context.Context, opts ListOptions) ([]*drive.File, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = DefaultOrderBy
	}
	fields := opts.Fields
	if fields == "" {
		fields = DefaultListFields
	}
	spaces := opts.Spaces
	if spaces == "" {
		spaces = "drive"
	}

	var (
		files     []*drive.File
		pageToken string
	)
	for {
		call := s.api.Files.List().
			PageSize(int64(pageSize)).
			OrderBy(orderBy).
			Spaces(spaces).
			Fields(googleapi.Field(fields)).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(opts.AllDrives)
		if opts.Query != "" {
			call = call.Q(opts.Query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := workspace.Call(ctx, s.limiter, "files.list", func(ctx context.Context) (*drive.FileList, error) {
			return call.Context(ctx).Do()
		})
		if err != nil {
			s.log.Error().Err(err).Msg("list files failed")
			return nil, fmt.Errorf("list files: %w", err)
		}
		files = append(files, resp.Files...)
		pageToken = resp.NextPageToken
		if pageToken == "" || (opts.Limit > 0 && len(files) >= opts.Limit) {
			break
		}
	}

	if opts.Limit > 0 && len(files) > opts.Limit {
		files = files[:opts.Limit]
	}
	s.log.Info().Int("count", len(files)).Msg("fetched files")
	return files, nil
}

// SearchFiles lists files matching a Drive query.
func (s *Service) SearchFiles(ctx context.Context, query string, limit int) ([]*drive.File, error) {
	if query == "" {
		return nil, fmt.Errorf("search query: %w", domain.ErrInvalidInput)
	}
	return s.ListFiles(ctx, ListOptions{Query: query, Limit: limit})
}

// GetFile returns all metadata of a file.
func (s *Service) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("file id: %w", domain.ErrInvalidInput)
	}
	file, err := workspace.Call(ctx, s.limiter, "files.get", func(ctx context.Context) (*drive.File, error) {
		return s.api.Files.Get(fileID).Fields("*").SupportsAllDrives(true).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", fileID, err)
	}
	return file, nil
}

// CreateFolder creates a folder, under parentID when given.
func (s *Service) CreateFolder(ctx context.Context, name, parentID, description string) (*drive.File, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name: %w", domain.ErrInvalidInput)
	}
	folder := &drive.File{Name: name, MimeType: MimeTypeFolder, Description: description}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	created, err := s.create(ctx, "files.create", folder)
	if err != nil {
		return nil, fmt.Errorf("create folder %q: %w", name, err)
	}
	s.log.Info().Str("folder_id", created.Id).Msg("created folder")
	return created, nil
}

// CreateShortcut creates a shortcut to targetID. The name defaults to
// "Shortcut to <target>".
func (s *Service) CreateShortcut(ctx context.Context, targetID, name, parentID string) (*drive.File, error) {
	if targetID == "" {
		return nil, fmt.Errorf("shortcut target: %w", domain.ErrInvalidInput)
	}
	if name == "" {
		name = "Shortcut to " + targetID
	}
	shortcut := &drive.File{
		Name:            name,
		MimeType:        MimeTypeShortcut,
		ShortcutDetails: &drive.FileShortcutDetails{TargetId: targetID},
	}
	if parentID != "" {
		shortcut.Parents = []string{parentID}
	}
	created, err := s.create(ctx, "files.create", shortcut)
	if err != nil {
		return nil, fmt.Errorf("create shortcut to %s: %w", targetID, err)
	}
	return created, nil
}

func (s *Service) create(ctx context.Context, op string, file *drive.File) (*drive.File, error) {
	return workspace.Call(ctx, s.limiter, op, func(ctx context.Context) (*drive.File, error) {
		return s.api.Files.Create(file).SupportsAllDrives(true).Context(ctx).Do()
	})
}

// UpdateFile patches file metadata with the non-empty fields of patch.
func (s *Service) UpdateFile(ctx context.Context, fileID string, patch *drive.File) (*drive.File, error) {
	if fileID == "" || patch == nil {
		return nil, fmt.Errorf("update file: %w", domain.ErrInvalidInput)
	}
	updated, err := workspace.Call(ctx, s.limiter, "files.update", func(ctx context.Context) (*drive.File, error) {
		return s.api.Files.Update(fileID, patch).SupportsAllDrives(true).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("update file %s: %w", fileID, err)
	}
	return updated, nil
}

// DeleteFile permanently deletes a file, skipping the trash.
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return fmt.Errorf("file id: %w", domain.ErrInvalidInput)
	}
	err := s.limiter.Do(ctx, "files.delete", func(ctx context.Context) error {
		return s.api.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	s.log.Info().Str("file_id", fileID).Msg("deleted file")
	return nil
}

// CopyFile copies a file. Empty name and parentID keep Drive's defaults.
func (s *Service) CopyFile(ctx context.Context, fileID, name, parentID string) (*drive.File, error) {
	meta := &drive.File{Name: name}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	copied, err := workspace.Call(ctx, s.limiter, "files.copy", func(ctx context.Context) (*drive.File, error) {
		return s.api.Files.Copy(fileID, meta).SupportsAllDrives(true).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("copy file %s: %w", fileID, err)
	}
	return copied, nil
}

// MoveFile moves a file into newParentID. When oldParentID is empty the
// file is removed from all of its current parents.
func (s *Service) MoveFile(ctx context.Context, fileID, newParentID, oldParentID string) (*drive.File, error) {
	if fileID == "" || newParentID == "" {
		return nil, fmt.Errorf("move file: %w", domain.ErrInvalidInput)
	}

	remove := oldParentID
	if remove == "" {
		current, err := workspace.Call(ctx, s.limiter, "files.get", func(ctx context.Context) (*drive.File, error) {
			return s.api.Files.Get(fileID).Fields("parents").SupportsAllDrives(true).Context(ctx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("get parents of %s: %w", fileID, err)
		}
		var others []string
		for _, p := range current.Parents {
			if p != newParentID {
				others = append(others, p)
			}
		}
		remove = strings.Join(others, ",")
	}

	moved, err := workspace.Call(ctx, s.limiter, "files.update", func(ctx context.Context) (*drive.File, error) {
		call := s.api.Files.Update(fileID, &drive.File{}).
			AddParents(newParentID).
			Fields("id, name, parents").
			SupportsAllDrives(true)
		if remove != "" {
			call = call.RemoveParents(remove)
		}
		return call.Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("move file %s: %w", fileID, err)
	}
	s.log.Info().Str("file_id", fileID).Str("parent", newParentID).Msg("moved file")
	return moved, nil
}
