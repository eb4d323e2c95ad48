package screener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
)

// Client fetches the weekly categorized candidate lists from the external
// screener service. Universe collection and fundamental filtering happen
// over there; this side only validates the payload at the boundary.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new screener client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log.With().Str("client", "screener").Logger(),
	}
}

// candidateSetResponse is the wire shape of the candidates endpoint
type candidateSetResponse struct {
	Candidates map[string][]domain.Candidate `json:"candidates"`
}

// GetCandidates fetches the ranked candidate set for the current cycle
func (c *Client) GetCandidates(ctx context.Context) (domain.CandidateSet, error) {
	url := fmt.Sprintf("%s/api/candidates", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("screener service returned %d: %s", resp.StatusCode, string(body))
	}

	var payload candidateSetResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}

	set := make(domain.CandidateSet, len(payload.Candidates))
	for cat, candidates := range payload.Candidates {
		category := domain.Category(cat)
		for i := range candidates {
			candidates[i].Category = category
		}
		set[category] = candidates
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate candidate set: %w", err)
	}

	total := 0
	for _, candidates := range set {
		total += len(candidates)
	}
	c.log.Info().Int("candidates", total).Msg("Candidate set fetched")

	return set, nil
}
