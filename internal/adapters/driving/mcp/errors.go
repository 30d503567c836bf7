// Package mcp provides an MCP (Model Context Protocol) server adapter for
// gspace. It lets AI assistants read and act on a Google Workspace account.
package mcp

import "errors"

// ErrMissingWorkspace is returned when no Workspace client is provided.
var ErrMissingWorkspace = errors.New("mcp: workspace client is required")
