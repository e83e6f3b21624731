package anam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lumenwave/go-host/internal/httpc"
)

// ErrNoAPIKey is returned when the client is created without a key.
var ErrNoAPIKey = errors.New("anam: API key required")

// DefaultBaseURL is the production Anam API endpoint.
const DefaultBaseURL = "https://api.anam.ai"

// APIError represents an error response from the Anam API.
// It carries the upstream status and body for diagnosis.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("anam: API error %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// Client calls the Anam platform API with a server-held key.
// The key never leaves this process.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates an Anam API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    httpc.Client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionToken exchanges a persona configuration for a short-lived
// streaming token. The persona is validated before any network call.
func (c *Client) SessionToken(ctx context.Context, persona PersonaConfig) (string, error) {
	if err := persona.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]PersonaConfig{"personaConfig": persona})
	if err != nil {
		return "", fmt.Errorf("anam: encode persona: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/auth/session-token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("anam: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("anam: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anam: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("anam: decode response: %w", err)
	}
	if result.SessionToken == "" {
		return "", fmt.Errorf("anam: no session token in response")
	}

	return result.SessionToken, nil
}
