// Package mcp provides a Model Context Protocol server for the
// condenser.
//
// It exposes two tools: condense_thread (run the full pipeline against
// a thread reference) and get_brief (retrieve a persisted brief by run
// id). Supports stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jimmc414/thread-condenser/internal/condense"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Runner  *condense.Runner
	Version string
}

// NewServer creates a configured MCP server with the condenser tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Thread Condenser",
		ver,
		server.WithToolCapabilities(false),
	)

	registerCondenseTool(s, cfg.Runner)
	registerGetBriefTool(s, cfg.Store)

	return s
}

func registerCondenseTool(s *server.MCPServer, runner *condense.Runner) {
	tool := mcp.NewTool("condense_thread",
		mcp.WithDescription("Condense a conversation thread into a brief of decisions, risks, action items, and open questions. Identify the thread by platform plus its native identifiers (Slack: team_id/channel_id/thread_ts; Teams: team_id/channel_id or chat_id plus message_id; Outlook: mailbox plus conversation_id)."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Source platform"),
			mcp.Enum("slack", "msteams", "outlook"),
		),
		mcp.WithString("thread_ref",
			mcp.Required(),
			mcp.Description("JSON object with the platform's thread identifiers"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Promotion threshold override (0-1)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		plat, err := req.RequireString("platform")
		if err != nil {
			return mcp.NewToolResultError("platform is required"), nil
		}
		refJSON, err := req.RequireString("thread_ref")
		if err != nil {
			return mcp.NewToolResultError("thread_ref is required"), nil
		}

		var refMap map[string]any
		if err := json.Unmarshal([]byte(refJSON), &refMap); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("thread_ref is not valid JSON: %v", err)), nil
		}
		ref := platform.RefFromMap(plat, refMap)
		if ref == nil {
			return mcp.NewToolResultError("thread_ref does not identify a fetchable thread"), nil
		}

		opts := condense.Options{}
		if threshold, err := req.RequireFloat("threshold"); err == nil && threshold > 0 {
			opts.Threshold = threshold
		}

		runID, result, err := runner.Run(ctx, ref, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("condense failed: %v", err)), nil
		}

		data, _ := json.MarshalIndent(map[string]any{
			"run_id": runID,
			"brief":  result,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerGetBriefTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("get_brief",
		mcp.WithDescription("Retrieve a previously produced brief by its run id (rc-...)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("The condense run identifier"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runID, err := req.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}

		brief, err := st.GetBrief(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("brief lookup failed: %v", err)), nil
		}
		if brief == nil {
			return mcp.NewToolResultError(fmt.Sprintf("no brief for run %s", runID)), nil
		}
		return mcp.NewToolResultText(string(brief.JSON)), nil
	})
}

// ServeStdio runs the MCP server over stdio until the client closes the
// stream.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
