package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Message is one notification addressed to one recipient on one channel
type Message struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	UserID    string `json:"userId"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// Gateway delivers messages for one channel
type Gateway interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// HTTPGateway posts messages as JSON to a provider webhook
type HTTPGateway struct {
	Name       string
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewHTTPGateway creates a new webhook gateway
func NewHTTPGateway(name, baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		Name:    name,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message and returns the provider message id
func (g *HTTPGateway) Send(ctx context.Context, msg Message) (string, error) {
	jsonBody, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s gateway: failed to send request: %w", g.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s gateway: failed to read response body: %w", g.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s gateway: request failed with status %d: %s", g.Name, resp.StatusCode, string(body))
	}

	var response struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%s gateway: failed to parse response: %w", g.Name, err)
	}
	return response.MessageID, nil
}

// MockGateway accepts every message without contacting a provider
type MockGateway struct {
	Name string
	// Fail, when set, rejects the messages it returns true for.
	Fail func(Message) bool
	sent atomic.Int64
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(name string) *MockGateway {
	return &MockGateway{Name: name}
}

// Send records the message and returns a synthetic id
func (g *MockGateway) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Fail != nil && g.Fail(msg) {
		return "", fmt.Errorf("%s mock gateway rejected %s", g.Name, msg.Recipient)
	}
	n := g.sent.Add(1)
	return fmt.Sprintf("%s-MOCK-MSG-%d", strings.ToUpper(g.Name), n), nil
}

// Sent returns how many messages were accepted.
func (g *MockGateway) Sent() int64 {
	return g.sent.Load()
}
