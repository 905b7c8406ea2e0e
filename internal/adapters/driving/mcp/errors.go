// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets MCP clients query the dependency index recorded by the last
// successful build.
package mcp

import "errors"

// ErrMissingIndexService is returned when the index service is not provided.
var ErrMissingIndexService = errors.New("mcp: index service is required")
