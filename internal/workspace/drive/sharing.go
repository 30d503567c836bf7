package drive

import (
	"context"
	"fmt"
	"slices"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace"
)

var (
	validRoles = []string{"reader", "commenter", "writer", "fileOrganizer", "organizer", "owner"}
	validTypes = []string{"user", "group", "domain", "anyone"}
)

// ShareOptions describes a permission grant.
type ShareOptions struct {
	// Role defaults to reader.
	Role string
	// Type defaults to user.
	Type string
	// EmailAddress is required for user and group grants.
	EmailAddress string
	// Domain is required for domain grants.
	Domain string
	// Notify sends the grantee an email.
	Notify bool
	Message string
}

// ShareFile grants a permission on a file.
func (s *Service) ShareFile(ctx context.Context, fileID string, opts ShareOptions) (*drive.Permission, error) {
	perm, err := buildPermission(opts)
	if err != nil {
		return nil, err
	}

	created, err := workspace.Call(ctx, s.limiter, "permissions.create", func(ctx context.Context) (*drive.Permission, error) {
		call := s.api.Permissions.Create(fileID, perm).
			SendNotificationEmail(opts.Notify).
			SupportsAllDrives(true)
		if opts.Notify && opts.Message != "" {
			call = call.EmailMessage(opts.Message)
		}
		if perm.Role == "owner" {
			call = call.TransferOwnership(true)
		}
		return call.Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("share file %s: %w", fileID, err)
	}
	s.log.Info().Str("file_id", fileID).Str("role", perm.Role).Str("type", perm.Type).Msg("shared file")
	return created, nil
}

func buildPermission(opts ShareOptions) (*drive.Permission, error) {
	perm := &drive.Permission{Role: opts.Role, Type: opts.Type}
	if perm.Role == "" {
		perm.Role = "reader"
	}
	if perm.Type == "" {
		perm.Type = "user"
	}
	if !slices.Contains(validRoles, perm.Role) {
		return nil, fmt.Errorf("role %q: %w", perm.Role, domain.ErrInvalidInput)
	}
	if !slices.Contains(validTypes, perm.Type) {
		return nil, fmt.Errorf("permission type %q: %w", perm.Type, domain.ErrInvalidInput)
	}

	switch perm.Type {
	case "user", "group":
		if opts.EmailAddress == "" {
			return nil, fmt.Errorf("%s grant needs an email address: %w", perm.Type, domain.ErrInvalidInput)
		}
		perm.EmailAddress = opts.EmailAddress
	case "domain":
		if opts.Domain == "" {
			return nil, fmt.Errorf("domain grant needs a domain: %w", domain.ErrInvalidInput)
		}
		perm.Domain = opts.Domain
	}
	return perm, nil
}

// GetFilePermissions lists the permissions on a file.
func (s *Service) GetFilePermissions(ctx context.Context, fileID string) ([]*drive.Permission, error) {
	resp, err := workspace.Call(ctx, s.limiter, "permissions.list", func(ctx context.Context) (*drive.PermissionList, error) {
		return s.api.Permissions.List(fileID).
			Fields("permissions(id, type, role, emailAddress, domain, displayName)").
			SupportsAllDrives(true).
			Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("list permissions of %s: %w", fileID, err)
	}
	return resp.Permissions, nil
}

// ListRevisions lists the stored revisions of a file.
func (s *Service) ListRevisions(ctx context.Context, fileID string) ([]*drive.Revision, error) {
	resp, err := workspace.Call(ctx, s.limiter, "revisions.list", func(ctx context.Context) (*drive.RevisionList, error) {
		return s.api.Revisions.List(fileID).
			Fields("revisions(id, mimeType, modifiedTime, keepForever, size, lastModifyingUser)").
			Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("list revisions of %s: %w", fileID, err)
	}
	return resp.Revisions, nil
}

// CreateComment adds a comment to a file. quoted is the text the comment
// refers to and may be empty.
func (s *Service) CreateComment(ctx context.Context, fileID, content, quoted string) (*drive.Comment, error) {
	if content == "" {
		return nil, fmt.Errorf("comment content: %w", domain.ErrInvalidInput)
	}
	comment := &drive.Comment{Content: content}
	if quoted != "" {
		comment.QuotedFileContent = &drive.CommentQuotedFileContent{MimeType: "text/plain", Value: quoted}
	}

	created, err := workspace.Call(ctx, s.limiter, "comments.create", func(ctx context.Context) (*drive.Comment, error) {
		return s.api.Comments.Create(fileID, comment).Fields("*").Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("comment on %s: %w", fileID, err)
	}
	return created, nil
}

// WebURL returns a browser link for a file, preferring the link Drive
// reported.
func WebURL(file *drive.File) string {
	if file == nil {
		return ""
	}
	if file.WebViewLink != "" {
		return file.WebViewLink
	}
	if file.Id == "" {
		return ""
	}
	return "https://drive.google.com/file/d/" + file.Id + "/view"
}
