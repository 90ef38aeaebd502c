package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// decodeResponse decodes a daemon reply into out. Non-200 replies are turned
// into an error carrying the server's "error" field when it sent one.
func decodeResponse(resp *http.Response, out any) error {
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("daemon returned %s: %s", resp.Status, body.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	return nil
}
