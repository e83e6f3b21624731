package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lumenwave/go-host/internal/httpc"
	"github.com/lumenwave/go-host/pkg/anam"
)

// HTTPTokenFetcher fetches stream tokens from a hostd instance.
// Authentication uses either a server session id or the shared access
// password, matching the broker's accepted inputs.
type HTTPTokenFetcher struct {
	BaseURL   string
	SessionID string
	Password  string
	Client    *http.Client
}

// FetchToken requests a stream token from POST /api/anam/session-token.
func (f *HTTPTokenFetcher) FetchToken(ctx context.Context, persona anam.PersonaConfig) (string, error) {
	payload, err := json.Marshal(map[string]anam.PersonaConfig{"personaConfig": persona})
	if err != nil {
		return "", fmt.Errorf("session: encode persona: %w", err)
	}

	url := strings.TrimSuffix(f.BaseURL, "/") + "/api/anam/session-token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("session: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.SessionID != "" {
		req.Header.Set("x-session-id", f.SessionID)
	}
	if f.Password != "" {
		req.Header.Set("x-access-password", f.Password)
	}

	client := f.Client
	if client == nil {
		client = httpc.Client
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("session: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("session: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session: token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("session: decode response: %w", err)
	}
	if result.SessionToken == "" {
		return "", fmt.Errorf("session: no session token returned")
	}

	return result.SessionToken, nil
}

var _ TokenFetcher = (*HTTPTokenFetcher)(nil)
