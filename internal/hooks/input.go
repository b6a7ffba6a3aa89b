package hooks

import "encoding/json"

// HookInput is the JSON an assistant host sends on stdin to hook handlers.
// Different events populate different subsets of the fields.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`

	// SessionStart
	Source string `json:"source,omitempty"`
	Model  string `json:"model,omitempty"`

	// UserPromptSubmit
	Prompt string `json:"prompt,omitempty"`

	// PostToolUse
	ToolName     string          `json:"tool_name,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`

	// Stop
	StopHookActive       bool   `json:"stop_hook_active,omitempty"`
	LastAssistantMessage string `json:"last_assistant_message,omitempty"`

	// SessionEnd
	Reason string `json:"reason,omitempty"`
}

// skipTools are meta-tools whose output is noise in session memory.
var skipTools = map[string]bool{
	"TodoRead":   true,
	"TodoWrite":  true,
	"Thinking":   true,
	"TaskList":   true,
	"TaskCreate": true,
	"TaskGet":    true,
	"TaskUpdate": true,
}

// ShouldSkipTool returns true if this tool should not be tracked as a chunk.
func (h *HookInput) ShouldSkipTool() bool {
	return skipTools[h.ToolName]
}

// fileTools carry a file_path argument that marks the file as viewed.
var fileTools = map[string]bool{
	"Read":      true,
	"Edit":      true,
	"MultiEdit": true,
	"Write":     true,
}

// FilePath returns tool_input.file_path for file tools, or "".
func (h *HookInput) FilePath() string {
	if !fileTools[h.ToolName] || len(h.ToolInput) == 0 {
		return ""
	}
	var in struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(h.ToolInput, &in); err != nil {
		return ""
	}
	return in.FilePath
}
