package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/frontdesk/internal/escalation"
	"github.com/kalambet/frontdesk/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store        *storage.Store
	Orchestrator *escalation.Orchestrator
}

// NewMCPServer creates an MCP server exposing the escalation flow to an AI
// agent process: ask a question, answer a pending request, inspect the
// backlog and stats.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"frontdesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("frontdesk — human-in-the-loop escalation for a front-desk agent. Ask questions; unknown ones are escalated to a supervisor and learned on resolution."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Answer a customer question from the knowledge base, escalating to the supervisor when unknown."),
			mcp.WithString("customer", mcp.Description("Customer identifier, e.g. a phone number"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The customer's question"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Optional conversation context")),
		),
		mcpAskQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("answer_request",
			mcp.WithDescription("Record the supervisor's answer to a pending help request. The answer is learned and relayed to the customer."),
			mcp.WithString("request_id", mcp.Description("ID of the pending help request"), mcp.Required()),
			mcp.WithString("response", mcp.Description("The supervisor's answer"), mcp.Required()),
		),
		mcpAnswerRequest(deps),
	)

	s.AddTool(
		mcp.NewTool("list_pending_requests",
			mcp.WithDescription("List help requests still waiting for a supervisor answer."),
		),
		mcpListPending(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"frontdesk://stats",
			"Escalation Stats",
			mcp.WithResourceDescription("Request counts by status plus active knowledge size"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		customer, err := req.RequireString("customer")
		if err != nil {
			return mcpError("customer is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		qContext := req.GetString("context", "")

		answer, err := deps.Orchestrator.HandleQuestion(customer, question, qContext)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to handle question: %v", err)), nil
		}

		b, err := json.Marshal(answer)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAnswerRequest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("request_id")
		if err != nil {
			return mcpError("request_id is required"), nil
		}
		response, err := req.RequireString("response")
		if err != nil {
			return mcpError("response is required"), nil
		}

		err = deps.Orchestrator.Resolve(id, response)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return mcpError(fmt.Sprintf("help request %s not found", id)), nil
		case errors.Is(err, storage.ErrInvalidTransition):
			return mcpError(fmt.Sprintf("help request %s is no longer pending", id)), nil
		case err != nil:
			return mcpError(fmt.Sprintf("failed to resolve request: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Resolved request %s", id)), nil
	}
}

func mcpListPending(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requests, err := deps.Store.ListPendingRequests()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list pending requests: %v", err)), nil
		}
		if len(requests) == 0 {
			return mcpText("[]"), nil
		}

		type pendingResult struct {
			ID        string `json:"id"`
			Customer  string `json:"customer"`
			Question  string `json:"question"`
			CreatedAt string `json:"created_at"`
			TimeoutAt string `json:"timeout_at"`
		}

		results := make([]pendingResult, len(requests))
		for i, r := range requests {
			results[i] = pendingResult{
				ID:        r.ID,
				Customer:  r.CustomerRef,
				Question:  r.Question,
				CreatedAt: r.CreatedAt.Format(time.RFC3339),
				TimeoutAt: r.TimeoutAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Store.RequestStats()
		if err != nil {
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
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
