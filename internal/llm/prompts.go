package llm

import "fmt"

// InternalSentinel prefixes every prompt memorylayer sends to a model.
// The claude-cli provider spawns a session whose hooks fire back into
// memorylayer; the submit hook skips prompts carrying this prefix.
const InternalSentinel = "[memorylayer-internal]"

// maxPromptContent bounds the chunk text embedded in a summary prompt.
const maxPromptContent = 24000

// SummaryPrompt asks for a compact summary of one chunk of session memory.
func SummaryPrompt(source, content string) string {
	if len(content) > maxPromptContent {
		content = content[:maxPromptContent]
	}
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf(`%s
You are compacting the working memory of an AI coding assistant. Summarize the
content below so it can replace the original in a token-limited context.

SOURCE: %s

CONTENT:
%s

Rules:
- At most 3 sentences, under 60 words
- Keep file paths, identifiers, decisions and error messages verbatim
- Drop boilerplate, repeated output and pleasantries
- Return ONLY the summary text`, InternalSentinel, source, content)
}
