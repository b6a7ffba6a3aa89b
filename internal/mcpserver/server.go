// Package mcpserver exposes the context engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lazypower/memorylayer/internal/engine"
)

// Tool is one MCP tool bound to the engine.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates the MCP server with every tool registered.
func New(eng *engine.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"memorylayer",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(eng) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// Tools returns every tool in registration order.
func Tools(eng *engine.Engine) []Tool {
	return []Tool{
		&contextTool{eng},
		&healthTool{eng},
		&markCriticalTool{eng},
		&criticalListTool{eng},
		&removeCriticalTool{eng},
		&compactTool{eng},
		&autoCompactTool{eng},
	}
}

const instructions = `memorylayer assembles token-budgeted context from working memory, the indexed codebase, recorded decisions and an archive of past sessions.
Call get_context before starting a task. Mark requirements and decisions that must survive compaction with mark_critical.
Check get_context_health when the session grows long and compact when it reports warning or critical.`

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Serve runs the MCP server on stdin/stdout until the client disconnects.
func Serve(eng *engine.Engine, version string) error {
	return server.ServeStdio(New(eng, version))
}
