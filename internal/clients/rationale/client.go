package rationale

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/modules/reconcile"
)

// Client asks the external rationale service for one-line justifications
// per ticker. Any failure here only means the caller falls back to the
// deterministic reason strings.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new rationale client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "rationale").Logger(),
	}
}

type reasonsRequest struct {
	Actions []reconcile.Action `json:"actions"`
}

type reasonsResponse struct {
	Reasons map[string]string `json:"reasons"`
}

// Reasons returns a ticker-to-justification map for the given actions.
// Implements the rationale.Provider interface.
func (c *Client) Reasons(ctx context.Context, actions []reconcile.Action) (map[string]string, error) {
	body, err := json.Marshal(reasonsRequest{Actions: actions})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rationale request: %w", err)
	}

	url := fmt.Sprintf("%s/api/reasons", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reasons: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rationale service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var payload reasonsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode reasons: %w", err)
	}

	c.log.Debug().Int("reasons", len(payload.Reasons)).Msg("Rationale fetched")
	return payload.Reasons, nil
}
