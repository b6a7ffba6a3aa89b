package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Handle reads HookInput from stdin, dispatches on the event argument and
// writes any hook output to stdout. Hooks never fail the calling session:
// errors go to stderr and the process still exits 0.
func Handle(event string, stdin io.Reader, stdout io.Writer) {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		// Stdin may be empty for some events
		if event == "start" {
			WriteSessionStartOutput(stdout, "")
			return
		}
		reportError(fmt.Errorf("decode stdin: %w", err))
		return
	}

	client := NewClient()
	if !client.Healthy() {
		if event == "start" {
			WriteSessionStartOutput(stdout, "")
		}
		return
	}

	if err := Dispatch(client, event, &input, stdout); err != nil {
		reportError(err)
	}
}

// Dispatch runs the handler for event against an already decoded input.
func Dispatch(client *Client, event string, input *HookInput, stdout io.Writer) error {
	switch event {
	case "start":
		return handleStart(client, input, stdout)
	case "submit":
		return handleSubmit(client, input, os.Getenv(internalEnv) != "")
	case "tool":
		return handleTool(client, input)
	case "stop":
		return handleStop(client, input)
	case "end":
		return handleEnd(client, input)
	default:
		return fmt.Errorf("unknown hook event: %s", event)
	}
}
