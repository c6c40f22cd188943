package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/larder-app/larder/internal/engine"
	"github.com/larder-app/larder/internal/insights"
	"github.com/larder-app/larder/internal/pantry"
	"github.com/larder-app/larder/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Now is injectable so tool
// tests can pin the reference date.
type MCPDeps struct {
	Store  *storage.Store
	Engine *engine.Engine
	Now    func() time.Time
}

// NewMCPServer creates an MCP server with the larder tools and resources
// registered, for assistants managing a pantry over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := server.NewMCPServer(
		"larder",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("larder — pantry expiry-risk assessment and recommendations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("assess_item",
			mcp.WithDescription("Assess the expiry risk of a pantry item and recommend an action."),
			mcp.WithString("name", mcp.Description("Item name, e.g. \"Whole Milk\""), mcp.Required()),
			mcp.WithNumber("quantity", mcp.Description("Quantity on hand (default 1)")),
			mcp.WithString("category", mcp.Description("Category if known, otherwise predicted from the name")),
			mcp.WithString("purchase_date", mcp.Description("Purchase date as YYYY-MM-DD")),
			mcp.WithString("expiry_date", mcp.Description("Expiry date as YYYY-MM-DD")),
			mcp.WithString("last_used_date", mcp.Description("Last use date as YYYY-MM-DD")),
			mcp.WithString("storage_location", mcp.Description("One of pantry, fridge, freezer")),
		),
		mcpAssessItem(deps),
	)

	s.AddTool(
		mcp.NewTool("categorize_item",
			mcp.WithDescription("Predict the pantry category for a free-text item name."),
			mcp.WithString("name", mcp.Description("Item name"), mcp.Required()),
		),
		mcpCategorizeItem(deps),
	)

	s.AddTool(
		mcp.NewTool("pantry_insights",
			mcp.WithDescription("Summarize the whole pantry: risk distribution, category balance, and suggestions."),
		),
		mcpPantryInsights(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"pantry://summary",
			"Pantry Summary",
			mcp.WithResourceDescription("Current pantry insight report as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpAssessItem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		item := pantry.Item{
			Name:     name,
			Category: pantry.Category(req.GetString("category", "")),
			Quantity: req.GetFloat("quantity", 1),
			Location: pantry.StorageLocation(req.GetString("storage_location", "")),
		}
		for _, d := range []struct {
			key  string
			dest **time.Time
		}{
			{"purchase_date", &item.PurchaseDate},
			{"expiry_date", &item.ExpiryDate},
			{"last_used_date", &item.LastUsedDate},
		} {
			raw := req.GetString(d.key, "")
			if raw == "" {
				continue
			}
			t, err := time.Parse(dateLayout, raw)
			if err != nil {
				return mcpError(fmt.Sprintf("%s: expected YYYY-MM-DD, got %q", d.key, raw)), nil
			}
			*d.dest = &t
		}

		assessment, err := deps.Engine.Assess(item, deps.Now().UTC())
		if err != nil {
			return mcpError(fmt.Sprintf("assessment failed: %v", err)), nil
		}
		return mcpJSON(assessment)
	}
}

func mcpCategorizeItem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		return mcpJSON(deps.Engine.Categorize(name))
	}
}

func mcpPantryInsights(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := buildReport(ctx, deps)
		if err != nil {
			return mcpError(fmt.Sprintf("insights failed: %v", err)), nil
		}
		return mcpJSON(report)
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		report, err := buildReport(ctx, deps)
		if err != nil {
			return nil, fmt.Errorf("building pantry summary: %w", err)
		}
		b, err := json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("marshalling pantry summary: %w", err)
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

func buildReport(ctx context.Context, deps MCPDeps) (insights.Report, error) {
	items, err := deps.Store.ListItems()
	if err != nil {
		return insights.Report{}, err
	}
	ref := deps.Now().UTC()
	assessments, err := deps.Engine.AssessAll(ctx, items, ref)
	if err != nil {
		return insights.Report{}, err
	}
	return insights.Build(assessments, items, ref), nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
