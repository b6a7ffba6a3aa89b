package hooks

import (
	"net/url"
	"strings"

	"github.com/lazypower/memorylayer/internal/llm"
)

// internalEnv is set on child processes memorylayer spawns for model calls.
const internalEnv = "MEMORYLAYER_INTERNAL"

// signalTriggers are phrases that indicate the user wants something kept
// through compaction.
var signalTriggers = []string{
	"remember this", "don't forget",
	"always use", "never use", "always do", "never do",
	"architecture decision", "we decided",
	"must ", "requirement",
}

// isInternalPrompt reports whether the prompt came from memorylayer's own
// summarization calls. The sentinel must be a prefix so user messages that
// quote it are not skipped.
func isInternalPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, llm.InternalSentinel)
}

// hasSignal returns true if the prompt contains any signal trigger phrase.
func hasSignal(prompt string) bool {
	return signalType(prompt) != ""
}

// signalType maps a prompt to the critical context type its trigger phrase
// implies, or "" when no trigger matches.
func signalType(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, trigger := range signalTriggers {
		if !strings.Contains(lower, trigger) {
			continue
		}
		switch trigger {
		case "architecture decision", "we decided":
			return "decision"
		case "always use", "never use", "always do", "never do":
			return "instruction"
		case "must ", "requirement":
			return "requirement"
		default:
			return "custom"
		}
	}
	return ""
}

func handleSubmit(client *Client, input *HookInput, internal bool) error {
	if internal || isInternalPrompt(input.Prompt) {
		return nil
	}

	if err := postJSON(client, "/api/sessions/init", map[string]string{
		"session_id": input.SessionID,
		"project":    input.CWD,
	}); err != nil {
		return err
	}
	if input.Prompt == "" {
		return nil
	}

	// The server keeps the first goal; later prompts are no-ops.
	if err := postJSON(client, "/api/sessions/"+url.PathEscape(input.SessionID)+"/goal",
		map[string]string{"goal": input.Prompt}); err != nil {
		return err
	}

	// Criticality is decided when a chunk is added, so the item goes first.
	if typ := signalType(input.Prompt); typ != "" {
		if err := postJSON(client, "/api/critical", map[string]string{
			"content": input.Prompt,
			"type":    typ,
			"reason":  "flagged in prompt",
			"source":  "hook:submit",
		}); err != nil {
			return err
		}
	}
	return postJSON(client, "/api/chunks", map[string]any{
		"content": input.Prompt,
		"source":  "user",
	})
}
