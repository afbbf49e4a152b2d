// Package nlquery resolves a free-text question into event ids through the
// external text-to-SQL service. Queries can take minutes; the client's
// timeout is sized for that.
package nlquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/confhub/confbot/internal/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	EventIDs []int64 `json:"event_ids"`
}

// Query asks the service which events answer the question. Failures are
// reported as domain.ErrUpstream; the dispatcher turns them into an
// apology message.
func (c *Client) Query(ctx context.Context, text string) ([]int64, error) {
	body, err := json.Marshal(queryRequest{Question: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query service unreachable: %w", domain.ErrUpstream)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", domain.ErrUpstream)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query service returned %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrUpstream)
	}

	var result queryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", domain.ErrUpstream)
	}
	return result.EventIDs, nil
}
