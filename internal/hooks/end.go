package hooks

import "net/url"

func handleEnd(client *Client, input *HookInput) error {
	if input.SessionID == "" {
		return nil
	}
	_, err := client.Post("/api/sessions/"+url.PathEscape(input.SessionID)+"/end", nil)
	return err
}
