package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// ListFragmentsInput is the input schema for the list_fragments tool.
type ListFragmentsInput struct{}

// ListFragmentsOutput is the output schema for the list_fragments tool.
type ListFragmentsOutput struct {
	RunID     string   `json:"run_id"`
	Fragments []string `json:"fragments"`
}

// FragmentImportsInput is the input schema for the fragment_imports tool.
type FragmentImportsInput struct {
	Fragment string `json:"fragment" jsonschema:"root-relative path of the fragment"`
}

// FragmentImportsOutput is the output schema for the fragment_imports tool.
type FragmentImportsOutput struct {
	Fragment string   `json:"fragment"`
	Imports  []string `json:"imports"`
	Scripts  []string `json:"scripts"`
	Styles   []string `json:"styles"`
}

// DependentsInput is the input schema for the dependents tool.
type DependentsInput struct {
	File string `json:"file" jsonschema:"root-relative path of an imported file"`
}

// DependentsOutput is the output schema for the dependents tool.
type DependentsOutput struct {
	File       string   `json:"file"`
	Dependents []string `json:"dependents"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_fragments",
		Description: "List the fragments analyzed by the last successful build",
	}, s.handleListFragments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fragment_imports",
		Description: "List the html imports, scripts and styles a fragment references",
	}, s.handleFragmentImports)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dependents",
		Description: "List the documents that html-import a file",
	}, s.handleDependents)
}

func (s *Server) handleListFragments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListFragmentsInput,
) (*mcp.CallToolResult, ListFragmentsOutput, error) {
	idx, run, err := s.ports.Index.Latest(ctx)
	if err != nil {
		return nil, ListFragmentsOutput{}, err
	}
	return nil, ListFragmentsOutput{
		RunID:     run.ID,
		Fragments: idStrings(idx.Fragments()),
	}, nil
}

func (s *Server) handleFragmentImports(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FragmentImportsInput,
) (*mcp.CallToolResult, FragmentImportsOutput, error) {
	id, err := domain.ParseCanonicalID(input.Fragment)
	if err != nil {
		return nil, FragmentImportsOutput{}, err
	}
	refs, err := s.ports.Index.Imports(ctx, id)
	if err != nil {
		return nil, FragmentImportsOutput{}, err
	}
	return nil, FragmentImportsOutput{
		Fragment: id.String(),
		Imports:  idStrings(refs.Imports),
		Scripts:  idStrings(refs.Scripts),
		Styles:   idStrings(refs.Styles),
	}, nil
}

func (s *Server) handleDependents(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DependentsInput,
) (*mcp.CallToolResult, DependentsOutput, error) {
	id, err := domain.ParseCanonicalID(input.File)
	if err != nil {
		return nil, DependentsOutput{}, err
	}
	deps, err := s.ports.Index.Dependents(ctx, id)
	if err != nil {
		return nil, DependentsOutput{}, err
	}
	return nil, DependentsOutput{
		File:       id.String(),
		Dependents: idStrings(deps),
	}, nil
}

// idStrings never returns nil so empty lists encode as [].
func idStrings(ids []domain.CanonicalID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
