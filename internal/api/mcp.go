package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/triage/internal/analytics"
	"github.com/kalambet/triage/internal/resolution"
	"github.com/kalambet/triage/internal/storage"
)

// ComplaintLister reads recent complaints for the MCP resource.
type ComplaintLister interface {
	ListComplaints(ctx context.Context, limit, offset int) ([]storage.Complaint, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Engine     Processor
	Complaints ComplaintLister
	Analytics  *analytics.Aggregator
	Version    string
}

// NewMCPServer creates an MCP server exposing complaint submission and analytics.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"triage",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("triage classifies customer complaints, answers them from curated solutions and reports support analytics."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("submit_complaint",
			mcp.WithDescription("Classify and answer a customer complaint, then store it."),
			mcp.WithString("customer_email", mcp.Description("Email address of the customer"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The complaint text"), mcp.Required()),
		),
		mcpSubmitComplaint(deps),
	)

	s.AddTool(
		mcp.NewTool("complaint_analytics",
			mcp.WithDescription("Return complaint totals, sentiment counts and answer type shares."),
		),
		mcpAnalytics(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"complaints://recent",
			"Recent Complaints",
			mcp.WithResourceDescription("Last 10 processed complaints"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSubmitComplaint(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c := resolution.Complaint{
			CustomerEmail: req.GetString("customer_email", ""),
			Text:          req.GetString("text", ""),
		}

		res, err := deps.Engine.Process(ctx, c)
		if errors.Is(err, resolution.ErrValidation) {
			return mcpError(err.Error()), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("processing failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAnalytics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := deps.Analytics.Snapshot(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("analytics failed: %v", err)), nil
		}
		b, err := json.Marshal(snap)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal analytics: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		complaints, err := deps.Complaints.ListComplaints(ctx, 10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent complaints: %w", err)
		}

		type complaintSummary struct {
			ID            int64  `json:"id"`
			CreatedAt     string `json:"created_at"`
			NormalizedKey string `json:"normalized_key"`
			Sentiment     string `json:"sentiment"`
			AnswerType    string `json:"answer_type"`
			Text          string `json:"text"`
		}

		summaries := make([]complaintSummary, len(complaints))
		for i, c := range complaints {
			text := c.Text
			if utf8.RuneCountInString(text) > 200 {
				runes := []rune(text)
				text = string(runes[:200]) + "..."
			}
			summaries[i] = complaintSummary{
				ID:            c.ID,
				CreatedAt:     c.CreatedAt.Format(time.RFC3339),
				NormalizedKey: c.NormalizedKey,
				Sentiment:     c.Sentiment,
				AnswerType:    c.AnswerType,
				Text:          text,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal complaints: %w", err)
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
