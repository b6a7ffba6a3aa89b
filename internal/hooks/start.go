package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
)

// startMaxTokens keeps the injected session-start context small.
const startMaxTokens = 2000

func handleStart(client *Client, input *HookInput, stdout io.Writer) error {
	if input.SessionID != "" {
		if err := postJSON(client, "/api/sessions/init", map[string]string{
			"session_id": input.SessionID,
			"project":    input.CWD,
		}); err != nil {
			WriteSessionStartOutput(stdout, "")
			return err
		}
	}

	query := "session start"
	if input.CWD != "" {
		query = fmt.Sprintf("resume work on %s", filepath.Base(input.CWD))
	}
	body, err := json.Marshal(map[string]any{"query": query, "max_tokens": startMaxTokens})
	if err != nil {
		return err
	}
	data, err := client.Post("/api/context", body)
	if err != nil {
		// Degrade to empty context
		WriteSessionStartOutput(stdout, "")
		return err
	}

	var resp struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		WriteSessionStartOutput(stdout, "")
		return fmt.Errorf("decode context: %w", err)
	}
	return WriteSessionStartOutput(stdout, resp.Context)
}

func postJSON(client *Client, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = client.Post(path, body)
	return err
}
