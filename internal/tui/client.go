// Package tui is the terminal chat client. It talks to a running careline
// server over the chat HTTP API, so the terminal and browser surfaces share
// one code path on the server side.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiClient struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

type apiChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type apiChatResponse struct {
	Status    string `json:"status"`
	Response  string `json:"response"`
	Error     string `json:"error"`
	SessionID string `json:"session_id"`
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Send posts one utterance and returns the reply text. The session id the
// server assigns on the first call is reused for the rest of the
// conversation.
func (c *apiClient) Send(ctx context.Context, message string) (string, error) {
	var resp apiChatResponse
	if err := c.post(ctx, "/api/chat", apiChatRequest{Message: message, SessionID: c.sessionID}, &resp); err != nil {
		return "", err
	}
	if resp.Status != "success" {
		return "", fmt.Errorf("server error: %s", resp.Error)
	}
	if resp.SessionID != "" {
		c.sessionID = resp.SessionID
	}
	return resp.Response, nil
}

// Clear drops the server-side conversation history.
func (c *apiClient) Clear(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	var resp apiChatResponse
	return c.post(ctx, "/api/clear-chat", map[string]string{"session_id": c.sessionID}, &resp)
}

// Ping checks the server is up before entering the UI loop.
func (c *apiClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("careline server unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("careline server returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *apiClient) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("careline server unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unexpected response from server: %w", err)
	}
	return nil
}
