package hooks

import (
	"strings"
	"unicode/utf8"
)

// maxToolChunk caps how much of a tool exchange is tracked.
const maxToolChunk = 8000

func handleTool(client *Client, input *HookInput) error {
	if input.ShouldSkipTool() {
		return nil
	}

	if err := postJSON(client, "/api/chunks", map[string]any{
		"content": toolContent(input),
		"source":  "tool:" + input.ToolName,
	}); err != nil {
		return err
	}

	if path := input.FilePath(); path != "" {
		return postJSON(client, "/api/working/viewed", map[string]string{"path": path})
	}
	return nil
}

func toolContent(input *HookInput) string {
	var b strings.Builder
	b.WriteString(input.ToolName)
	if len(input.ToolInput) > 0 {
		b.WriteString(" ")
		b.Write(input.ToolInput)
	}
	if len(input.ToolResponse) > 0 {
		b.WriteString("\n")
		b.Write(input.ToolResponse)
	}
	s := b.String()
	if len(s) <= maxToolChunk {
		return s
	}
	cut := maxToolChunk
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}
