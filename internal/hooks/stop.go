package hooks

// handleStop lets the server compact between turns when health calls for it.
func handleStop(client *Client, input *HookInput) error {
	if input.StopHookActive {
		return nil
	}
	_, err := client.Post("/api/compact/auto", nil)
	return err
}
