// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault graph queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
)

const linkSyntaxURI = "vaultgraph://link-syntax"

// Server wraps the MCP server with graph tools.
type Server struct {
	mcp *server.MCPServer
	svc *graph.Service
}

// New creates a new MCP server with all graph tools registered.
func New(svc *graph.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"vaultgraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("List the resolved links written in a note, in document order."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find every link that points into the specified file, its headings or its blocks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_unresolved",
		mcp.WithDescription("List references whose file could not be found in the vault."),
		mcp.WithBoolean("include_external", mcp.Description("Also list external URLs (default false)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of references (default all)")),
	), s.listUnresolved)

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("List the headings and blocks of a note with a destination addressing each."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.getOutline)

	s.mcp.AddTool(mcp.NewTool("resolve_destination",
		mcp.WithDescription("Resolve a link destination as if it were written in a note. "+
			"See the get_link_syntax tool or the "+linkSyntaxURI+" resource for the grammar."),
		mcp.WithString("dest", mcp.Required(), mcp.Description("Destination, e.g. Note#Heading or #^block-id")),
		mcp.WithString("from", mcp.Description("Note the destination is written in")),
	), s.resolveDestination)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by title, tags and body text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("rescan_vault",
		mcp.WithDescription("Rescan the whole vault and rebuild the link graph."),
	), s.rescanVault)

	s.mcp.AddTool(mcp.NewTool("get_link_syntax",
		mcp.WithDescription("Returns the link destination grammar used by the resolver."),
	), s.getLinkSyntax)

	s.mcp.AddResource(
		mcp.NewResource(linkSyntaxURI, "Link Syntax",
			mcp.WithResourceDescription("How link destinations are written and resolved."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// formatLinks renders one link per line as "source:start-end -> target".
func formatLinks(rows []index.LinkRow, source bool) string {
	var b strings.Builder
	for _, r := range rows {
		if source {
			fmt.Fprintf(&b, "%s:%d-%d ", r.Source, r.Range.Start, r.Range.End)
		}
		fmt.Fprintf(&b, "[%s] %s -> %s", r.RefKind, r.Dest, r.TargetPath)
		if r.TargetLabel != "" {
			fmt.Fprintf(&b, " (%s %s)", r.TargetKind, r.TargetLabel)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.svc.Links(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no links found"), nil
	}
	return mcp.NewToolResultText(formatLinks(rows, false)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(formatLinks(rows, true)), nil
}

func (s *Server) listUnresolved(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	external := req.GetBool("include_external", false)
	limit := req.GetInt("limit", 0)
	refs, err := s.svc.Unresolved(ctx, external, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no unresolved references"), nil
	}
	var b strings.Builder
	for _, r := range refs {
		fmt.Fprintf(&b, "%s:%d-%d [%s] %s\n", r.Path, r.Range.Start, r.Range.End, r.Kind, r.Dest)
	}
	return mcp.NewToolResultText(strings.TrimSuffix(b.String(), "\n")), nil
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := s.svc.Outline(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return jsonResult(o)
}

func (s *Server) resolveDestination(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dest, err := req.RequireString("dest")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Resolve(ctx, req.GetString("from", ""), dest)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.ReadNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) rescanVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.svc.Rescan(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rescanned: %d notes, %d links, %d unresolved, %d changed",
		r.Notes, r.Links, r.Unresolved, len(r.Changed))), nil
}

func (s *Server) getLinkSyntax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkSyntax), nil
}

func (s *Server) readLinkSyntaxResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      linkSyntaxURI,
			MIMEType: "text/markdown",
			Text:     LinkSyntax,
		},
	}, nil
}
