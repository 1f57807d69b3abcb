// Package client provides a small Go SDK for talking to one node of the
// replicated log (primary or secondary), wrapping the raw HTTP calls
// behind typed methods.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a single node. It does not know whether that node is the
// primary or a secondary — it just issues HTTP calls against baseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client. timeout protects every call from hanging
// forever; zero defaults to 10s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AppendResponse is returned by a successful Append.
type AppendResponse struct {
	Seq        int64    `json:"seq"`
	W          int      `json:"w"`
	DurationMs int64    `json:"duration_ms"`
	Messages   []string `json:"messages"`
}

// Append submits msg to the primary with the given write concern. w<=0
// omits "w" from the request body, letting the server apply its default
// (W = N+1).
func (c *Client) Append(ctx context.Context, msg string, w int) (*AppendResponse, error) {
	payload := map[string]any{"msg": msg}
	if w > 0 {
		payload["w"] = w
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/messages", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /messages failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result AppendResponse
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// Messages returns the node's currently visible log.
func (c *Client) Messages(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/messages", c.baseURL), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /messages failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result struct {
		Messages []string `json:"messages"`
	}
	return result.Messages, json.NewDecoder(resp.Body).Decode(&result)
}

// HealthResponse is the decoded GET /health body. SecondaryStatuses is only
// populated by a primary.
type HealthResponse struct {
	Status            string           `json:"status"`
	Count             int              `json:"count"`
	Secondaries       []string         `json:"secondaries"`
	SecondaryStatuses []SecondaryState `json:"secondary_statuses"`
}

// SecondaryState is one secondary's health as seen by the primary's prober.
type SecondaryState struct {
	Addr       string `json:"addr"`
	Healthy    bool   `json:"healthy"`
	LastSeenMs int64  `json:"last_seen_ms"`
}

// Health retrieves the node's health view.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET /health failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result HealthResponse
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// APIError carries the HTTP status and the error message from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// checkStatus converts a non-2xx HTTP response into an *APIError, decoding
// the server's {"error": "...", "message": "..."} body when present.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
