// Package mcpserver exposes link checking, repair and heading renames as
// MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ryotapoi/anchorsync/internal/workspace"
)

// New returns an MCP server with every anchorsync tool registered.
func New(ws *workspace.Workspace, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"anchorsync",
		version,
		server.WithToolCapabilities(true),
	)
	RegisterTools(s, ws)
	return s
}

// RegisterTools adds the anchorsync tools to s.
func RegisterTools(s *server.MCPServer, ws *workspace.Workspace) {
	s.AddTool(checkTool(), checkHandler(ws))
	s.AddTool(suggestTool(), suggestHandler(ws))
	s.AddTool(repairTool(), repairHandler(ws))
	s.AddTool(renameTool(), renameHandler(ws))
}

// --- check_links ---

func checkTool() mcp.Tool {
	return mcp.NewTool("check_links",
		mcp.WithDescription("List heading links that point to a missing note or a missing heading."),
		mcp.WithString("path",
			mcp.Description("Vault-relative document path. Omit to check the whole vault."),
		),
	)
}

func checkHandler(ws *workspace.Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := ws.Check(ctx, optionalPath(req))
		if err != nil {
			return toolError(err)
		}
		if len(res.Broken) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No broken heading links in %d documents.", res.Checked)), nil
		}
		var b strings.Builder
		for _, doc := range res.Broken {
			for _, l := range doc.Links {
				fmt.Fprintf(&b, "%s: %s\n", doc.Path, l.Describe())
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// --- suggest_repairs ---

func suggestTool() mcp.Tool {
	return mcp.NewTool("suggest_repairs",
		mcp.WithDescription("Rank replacement headings for links to missing headings, best first."),
		mcp.WithString("path",
			mcp.Description("Vault-relative document path. Omit to cover the whole vault."),
		),
	)
}

func suggestHandler(ws *workspace.Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := ws.Suggest(ctx, optionalPath(req))
		if err != nil {
			return toolError(err)
		}
		if len(docs) == 0 {
			return mcp.NewToolResultText("No results."), nil
		}
		var b strings.Builder
		for _, doc := range docs {
			for _, c := range doc.Candidates {
				fmt.Fprintf(&b, "%s: %s\n", doc.Path, c.RawLink)
				for _, s := range c.Suggestions {
					fmt.Fprintf(&b, "  %s (%.3f)\n", s.Heading, s.Score)
				}
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// --- repair_link ---

func repairTool() mcp.Tool {
	return mcp.NewTool("repair_link",
		mcp.WithDescription("Point one heading link at a different heading of the same note."),
		mcp.WithString("path",
			mcp.Description("Vault-relative path of the document containing the link"),
			mcp.Required(),
		),
		mcp.WithString("link",
			mcp.Description("The link exactly as written, e.g. [[Note#Old heading]]"),
			mcp.Required(),
		),
		mcp.WithString("heading",
			mcp.Description("Heading the link should point to"),
			mcp.Required(),
		),
	)
}

func repairHandler(ws *workspace.Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		link := req.GetString("link", "")
		heading := strings.TrimSpace(req.GetString("heading", ""))
		if heading == "" {
			return toolError(fmt.Errorf("heading is required"))
		}
		if _, err := ws.RepairLink(ctx, path, link, heading, false); err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Repaired %s in %s", link, path)), nil
	}
}

// --- rename_heading ---

func renameTool() mcp.Tool {
	return mcp.NewTool("rename_heading",
		mcp.WithDescription("Rename a heading and update every link to it across the vault."),
		mcp.WithString("path",
			mcp.Description("Vault-relative path of the document containing the heading"),
			mcp.Required(),
		),
		mcp.WithString("old",
			mcp.Description("Current heading text"),
			mcp.Required(),
		),
		mcp.WithString("new",
			mcp.Description("New heading text"),
			mcp.Required(),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Report the affected documents without writing them"),
		),
	)
}

func renameHandler(ws *workspace.Workspace) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		oldHeading := req.GetString("old", "")
		newHeading := strings.TrimSpace(req.GetString("new", ""))
		dryRun := req.GetBool("dry_run", false)
		if newHeading == "" {
			return toolError(fmt.Errorf("new heading is required"))
		}

		res, err := ws.RenameHeading(ctx, path, oldHeading, newHeading, dryRun)
		if err != nil {
			return toolError(err)
		}
		verb := "Updated"
		if dryRun {
			verb = "Would update"
		}
		var b strings.Builder
		for _, c := range res.Changes {
			fmt.Fprintf(&b, "%s %s\n", verb, c.Path)
		}
		for p, ferr := range res.Failed {
			fmt.Fprintf(&b, "Skipped %s: %v\n", p, ferr)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func optionalPath(req mcp.CallToolRequest) []string {
	if p := strings.TrimSpace(req.GetString("path", "")); p != "" {
		return []string{p}
	}
	return nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
