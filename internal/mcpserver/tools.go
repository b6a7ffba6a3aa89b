package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lazypower/memorylayer/internal/engine"
	"github.com/lazypower/memorylayer/internal/health"
)

type contextTool struct{ eng *engine.Engine }

func (t *contextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_context",
		mcp.WithDescription("Assemble relevant context for a query within a token budget: the active file, ranked code, recorded decisions and archived summaries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What you are working on")),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget for the assembled context (default 6000)")),
		mcp.WithString("current_file", mcp.Description("Path of the file being edited, boosts nearby code")),
	)
}

func (t *contextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := t.eng.Assemble(ctx, query, engine.AssembleOptions{
		MaxTokens:   req.GetInt("max_tokens", 0),
		CurrentFile: req.GetString("current_file", ""),
	})
	if err != nil {
		return mcp.NewToolResultError("assemble context: " + err.Error()), nil
	}
	text := out.Context
	if text == "" {
		text = "No relevant context found."
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n(%d tokens from %d sources)", text, out.TokenCount, len(out.Sources))), nil
}

type healthTool struct{ eng *engine.Engine }

func (t *healthTool) Definition() mcp.Tool {
	return mcp.NewTool("get_context_health",
		mcp.WithDescription("Report token utilization, relevance, drift and compaction suggestions for the current session."),
		mcp.WithNumber("drift", mcp.Description("Override the drift score (0-1); computed from the session goal when omitted")),
	)
}

func (t *healthTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := req.GetArguments()["drift"]; ok {
		drift := req.GetFloat("drift", 0)
		if drift < 0 || drift > 1 {
			return mcp.NewToolResultError("drift must be between 0 and 1"), nil
		}
		return jsonResult(t.eng.GetHealthWithDrift(drift))
	}
	return jsonResult(t.eng.GetHealth())
}

type markCriticalTool struct{ eng *engine.Engine }

func (t *markCriticalTool) Definition() mcp.Tool {
	return mcp.NewTool("mark_critical",
		mcp.WithDescription("Protect a decision, requirement or instruction from ever being compacted."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The exact text to protect")),
		mcp.WithString("type", mcp.Description("decision, requirement, instruction or custom (default custom)"),
			mcp.Enum(string(health.TypeDecision), string(health.TypeRequirement), string(health.TypeInstruction), string(health.TypeCustom))),
		mcp.WithString("reason", mcp.Description("Why this must be kept")),
	)
}

func (t *markCriticalTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := health.ParseContextType(req.GetString("type", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item := t.eng.MarkCritical(ctx, content, typ, req.GetString("reason", ""), "mcp")
	return jsonResult(item)
}

type criticalListTool struct{ eng *engine.Engine }

func (t *criticalListTool) Definition() mcp.Tool {
	return mcp.NewTool("get_critical_context",
		mcp.WithDescription("List protected context items, optionally filtered by type."),
		mcp.WithString("type", mcp.Description("decision, requirement, instruction or custom")),
	)
}

func (t *criticalListTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var typ health.ContextType
	if v := req.GetString("type", ""); v != "" {
		parsed, err := health.ParseContextType(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		typ = parsed
	}
	return jsonResult(t.eng.GetCriticalContext(typ))
}

type removeCriticalTool struct{ eng *engine.Engine }

func (t *removeCriticalTool) Definition() mcp.Tool {
	return mcp.NewTool("remove_critical",
		mcp.WithDescription("Stop protecting a critical context item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id from get_critical_context")),
	)
}

func (t *removeCriticalTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !t.eng.RemoveCritical(ctx, id) {
		return mcp.NewToolResultText(fmt.Sprintf("No critical item with id %s.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed critical item %s.", id)), nil
}

type compactTool struct{ eng *engine.Engine }

func (t *compactTool) Definition() mcp.Tool {
	return mcp.NewTool("trigger_compaction",
		mcp.WithDescription("Compact session context. Critical items and the most recent chunks are never touched."),
		mcp.WithString("strategy", mcp.Description("selective, summarize or aggressive (default summarize)"),
			mcp.Enum(string(health.StrategySelective), string(health.StrategySummarize), string(health.StrategyAggressive))),
		mcp.WithNumber("preserve_recent", mcp.Description("Most recent chunks to keep verbatim (default 10)")),
		mcp.WithNumber("target_utilization", mcp.Description("Stop once utilization falls to this percentage")),
	)
}

func (t *compactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.eng.TriggerCompaction(ctx, health.CompactionOptions{
		Strategy:          health.Strategy(req.GetString("strategy", "")),
		PreserveRecent:    req.GetInt("preserve_recent", 0),
		TargetUtilization: req.GetFloat("target_utilization", 0),
	})
	if errors.Is(err, health.ErrUnknownStrategy) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

type autoCompactTool struct{ eng *engine.Engine }

func (t *autoCompactTool) Definition() mcp.Tool {
	return mcp.NewTool("auto_compact",
		mcp.WithDescription("Compact only if session health calls for it, picking the strategy from the health level."),
	)
}

func (t *autoCompactTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.eng.AutoCompact(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}
