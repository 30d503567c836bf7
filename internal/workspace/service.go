package workspace

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// NewGmailService creates a Gmail API service.
func NewGmailService(ctx context.Context, opts ...option.ClientOption) (*gmail.Service, error) {
	return gmail.NewService(ctx, opts...)
}

// NewDriveService creates a Google Drive API service.
func NewDriveService(ctx context.Context, opts ...option.ClientOption) (*drive.Service, error) {
	return drive.NewService(ctx, opts...)
}

// NewCalendarService creates a Google Calendar API service.
func NewCalendarService(ctx context.Context, opts ...option.ClientOption) (*calendar.Service, error) {
	return calendar.NewService(ctx, opts...)
}

// NewSheetsService creates a Google Sheets API service.
func NewSheetsService(ctx context.Context, opts ...option.ClientOption) (*sheets.Service, error) {
	return sheets.NewService(ctx, opts...)
}

// NewDocsService creates a Google Docs API service.
func NewDocsService(ctx context.Context, opts ...option.ClientOption) (*docs.Service, error) {
	return docs.NewService(ctx, opts...)
}

// GetUserInfo fetches the authenticated user's profile from the OAuth2 API.
func GetUserInfo(ctx context.Context, opts ...option.ClientOption) (*domain.UserInfo, error) {
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create oauth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", WrapError(err))
	}

	user := &domain.UserInfo{
		ID:           info.Id,
		Email:        info.Email,
		Name:         info.Name,
		GivenName:    info.GivenName,
		FamilyName:   info.FamilyName,
		Picture:      info.Picture,
		Locale:       info.Locale,
		HostedDomain: info.Hd,
	}
	if info.VerifiedEmail != nil {
		user.VerifiedEmail = *info.VerifiedEmail
	}
	return user, nil
}
