package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

const (
	uriScheme = "polymer-build://"

	// runsResourceLimit caps the runs resource listing.
	runsResourceLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent build runs, newest first",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "fragments/{fragment}",
		Name:        "fragment-references",
		Description: "Reference set of a fragment in the latest index",
		MIMEType:    "application/json",
	}, s.handleFragmentResource)
}

// handleRunsResource returns the most recent runs.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runs, err := s.ports.Index.Runs(ctx, runsResourceLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	type runInfo struct {
		ID           string `json:"id"`
		Root         string `json:"root"`
		Status       string `json:"status"`
		Error        string `json:"error,omitempty"`
		StartedAt    string `json:"started_at,omitempty"`
		DurationMS   int64  `json:"duration_ms"`
		Sources      int    `json:"sources"`
		Dependencies int    `json:"dependencies"`
		Warnings     int    `json:"warnings"`
	}

	infos := make([]runInfo, len(runs))
	for i := range runs {
		r := runs[i]
		info := runInfo{
			ID:           r.ID,
			Root:         r.Root,
			Status:       string(r.Status),
			Error:        r.Error,
			DurationMS:   r.Duration().Milliseconds(),
			Sources:      r.Sources,
			Dependencies: r.Dependencies,
			Warnings:     len(r.Warnings),
		}
		if !r.StartedAt.IsZero() {
			info.StartedAt = r.StartedAt.Format(time.RFC3339)
		}
		infos[i] = info
	}

	return jsonResult(req.Params.URI, infos)
}

// handleFragmentResource returns the reference set of one fragment.
func (s *Server) handleFragmentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	raw := extractFragment(req.Params.URI)
	if raw == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	id, err := domain.ParseCanonicalID(raw)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	refs, err := s.ports.Index.Imports(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("reading fragment: %w", err)
	}

	return jsonResult(req.Params.URI, FragmentImportsOutput{
		Fragment: id.String(),
		Imports:  idStrings(refs.Imports),
		Scripts:  idStrings(refs.Scripts),
		Styles:   idStrings(refs.Styles),
	})
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractFragment extracts the fragment path from a URI like
// polymer-build://fragments/src/app.html.
func extractFragment(uri string) string {
	const prefix = uriScheme + "fragments/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.TrimPrefix(uri, prefix)
}
