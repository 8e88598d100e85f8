package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/relayout/internal/profile"
	"github.com/kalambet/relayout/internal/transform"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profiles    *profile.Manager
	Transformer *transform.Transformer
}

// NewMCPServer creates an MCP server exposing conversion and profile tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"relayout",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("relayout converts text typed in the wrong keyboard layout using the active conversion profile."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("transform_text",
			mcp.WithDescription("Convert text between the two layouts of the active profile."),
			mcp.WithString("text", mcp.Description("Text typed in the wrong layout"), mcp.Required()),
		),
		mcpTransform(deps),
	)

	s.AddTool(
		mcp.NewTool("detect_side",
			mcp.WithDescription("Report which side of the active profile the text mostly belongs to: forward, reverse or tie."),
			mcp.WithString("text", mcp.Description("Text to inspect"), mcp.Required()),
		),
		mcpDetect(deps),
	)

	s.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List conversion profiles and the active profile id."),
		),
		mcpListProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("activate_profile",
			mcp.WithDescription("Make the profile with the given id active."),
			mcp.WithString("id", mcp.Description("Profile id"), mcp.Required()),
		),
		mcpActivateProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"profile://active",
			"Active Profile",
			mcp.WithResourceDescription("The active conversion profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceActive(deps),
	)

	return s
}

func mcpTransform(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		return mcpText(deps.Transformer.Transform(text)), nil
	}
}

func mcpDetect(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		return mcpText(deps.Transformer.DetectDominantSide(text).String()), nil
	}
}

func mcpListProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type summary struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Editable bool   `json:"editable"`
			Active   bool   `json:"active"`
			Entries  int    `json:"entries"`
		}

		active := deps.Profiles.ActiveID()
		list := deps.Profiles.List()
		out := make([]summary, len(list))
		for i, p := range list {
			out[i] = summary{
				ID:       p.ID,
				Name:     p.Name,
				Editable: p.Editable,
				Active:   p.ID == active,
				Entries:  len(p.Mapping),
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profiles: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpActivateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Profiles.SetActive(id); err != nil {
			if errors.Is(err, profile.ErrProfileNotFound) {
				return mcpError(fmt.Sprintf("no profile with id %q", id)), nil
			}
			return mcpError(fmt.Sprintf("failed to activate profile: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Active profile is now %s", id)), nil
	}
}

func mcpResourceActive(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, ok := deps.Profiles.Active()
		if !ok {
			return nil, fmt.Errorf("no active profile")
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
