package mcp

import (
	"context"

	"github.com/custodia-labs/gspace/internal/client"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
	"github.com/custodia-labs/gspace/internal/workspace/calendar"
	"github.com/custodia-labs/gspace/internal/workspace/docs"
	"github.com/custodia-labs/gspace/internal/workspace/drive"
	"github.com/custodia-labs/gspace/internal/workspace/gmail"
	"github.com/custodia-labs/gspace/internal/workspace/sheets"
)

// Workspace is the part of the GSpace client the server uses.
type Workspace interface {
	Calendar(ctx context.Context) (*calendar.Service, error)
	Gmail(ctx context.Context) (*gmail.Service, error)
	Drive(ctx context.Context) (*drive.Service, error)
	Sheets(ctx context.Context) (*sheets.Service, error)
	Docs(ctx context.Context) (*docs.Service, error)
	UserInfo(ctx context.Context) (*domain.UserInfo, error)
}

var _ Workspace = (*client.GSpace)(nil)

// Ports aggregates the dependencies of the MCP server.
type Ports struct {
	// Workspace provides the API wrappers.
	Workspace Workspace

	// Tokens lists stored credentials. Optional.
	Tokens driving.TokenService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Workspace == nil {
		return ErrMissingWorkspace
	}
	return nil
}
