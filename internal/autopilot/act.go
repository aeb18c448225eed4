package autopilot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result is the decoded body of a successful command.
type Result map[string]any

// Actor executes commands via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act posts cmd and decodes the response. Non-2xx answers become errors
// carrying the server's rejection reason.
func (a *Actor) Act(cmd *Command) (Result, error) {
	var body io.Reader = http.NoBody
	if cmd.Body != nil {
		data, err := json.Marshal(cmd.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", cmd.Kind, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+cmd.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", cmd.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var rejection struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(respBody, &rejection) == nil && rejection.Reason != "" {
			return nil, fmt.Errorf("%s rejected (%d, %s): %s", cmd.Kind, resp.StatusCode, rejection.Reason, rejection.Error)
		}
		return nil, fmt.Errorf("%s failed (%d): %s", cmd.Kind, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	// Some commands answer with a list view; only object bodies are decoded.
	result := Result{}
	if len(respBody) > 0 && respBody[0] == '{' {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return result, nil
}
