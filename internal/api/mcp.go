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

	"github.com/kalambet/aura/internal/conversation"
	"github.com/kalambet/aura/internal/session"
	"github.com/kalambet/aura/internal/storage"
)

const recentOrders = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions *session.Manager
	Store    *storage.Store
	Version  string
}

// NewMCPServer creates an MCP server with the session tools and the recent
// orders resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"aura",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("A.U.R.A: a conversational assistant that answers questions, books orders and suggests follow-up tasks."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("start_session",
			mcp.WithDescription("Start a conversation with the assistant and return its ID and greeting."),
			mcp.WithString("full_name", mcp.Description("Name the assistant greets the user by")),
			mcp.WithString("email", mcp.Description("Email used when no name is given")),
		),
		mcpStartSession(deps),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a message in a session and return the turns it produced."),
			mcp.WithString("session_id", mcp.Description("Session ID from start_session"), mcp.Required()),
			mcp.WithString("text", mcp.Description("The user's message"), mcp.Required()),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List the follow-up tasks suggested in a session, newest first."),
			mcp.WithString("session_id", mcp.Description("Session ID from start_session"), mcp.Required()),
		),
		mcpListTasks(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"aura://orders/recent",
			"Recent Orders",
			mcp.WithResourceDescription("Last 10 confirmed bookings"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentOrders(deps),
	)

	return s
}

func mcpStartSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := deps.Sessions.Start(conversation.Identity{
			FullName: req.GetString("full_name", ""),
			Email:    req.GetString("email", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to start session: %v", err)), nil
		}
		return mcpJSON(StartSessionResponse{Session: viewOf(s), Messages: s.Messages()})
	}
}

func mcpSendMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		s, err := deps.Sessions.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("unknown session %s", id)), nil
		}
		turns, err := s.Submit(ctx, text)
		if errors.Is(err, session.ErrBusy) {
			return mcpError("session is busy, try again when the previous message is answered"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}
		if turns == nil {
			turns = []conversation.Turn{}
		}
		return mcpJSON(TurnsResponse{Turns: turns})
	}
}

func mcpListTasks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		s, err := deps.Sessions.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("unknown session %s", id)), nil
		}
		return mcpJSON(s.Tasks())
	}
}

func mcpResourceRecentOrders(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		orders, err := deps.Store.ListOrders(recentOrders, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}

		type orderSummary struct {
			Confirmation string `json:"confirmation"`
			Domain       string `json:"domain"`
			Summary      string `json:"summary"`
			CreatedAt    string `json:"created_at"`
		}

		summaries := make([]orderSummary, len(orders))
		for i, o := range orders {
			summary := o.Summary
			if utf8.RuneCountInString(summary) > 200 {
				runes := []rune(summary)
				summary = string(runes[:200]) + "..."
			}
			summaries[i] = orderSummary{
				Confirmation: o.Confirmation,
				Domain:       o.Domain,
				Summary:      summary,
				CreatedAt:    o.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal orders: %w", err)
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
