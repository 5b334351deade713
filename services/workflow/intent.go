package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IntentClient calls the external buyer-intent data API. It implements
// SignalSource.
type IntentClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIntentClient returns a client with a 10-second timeout.
func NewIntentClient(baseURL string) *IntentClient {
	return &IntentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Authenticate exchanges API credentials for a short-lived bearer token.
func (c *IntentClient) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	body, err := json.Marshal(map[string]string{
		"apiKey":    creds.APIKey,
		"apiSecret": creds.APISecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("intent API auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("intent API rejected credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("intent API auth returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("intent API auth response missing access token")
	}
	return token.AccessToken, nil
}

type signalsResponse struct {
	Signals []struct {
		Subject    string         `json:"subject"`
		Topic      string         `json:"topic"`
		Score      float64        `json:"score"`
		ObservedAt time.Time      `json:"observed_at"`
		Attributes map[string]any `json:"attributes"`
	} `json:"signals"`
}

// FetchSignals retrieves the signals currently matching the filter.
func (c *IntentClient) FetchSignals(ctx context.Context, token string, filter FilterCriteria) ([]Signal, error) {
	query := url.Values{}
	if len(filter.Topics) > 0 {
		query.Set("topics", strings.Join(filter.Topics, ","))
	}
	if filter.MinScore > 0 {
		query.Set("min_score", fmt.Sprintf("%.1f", filter.MinScore))
	}

	endpoint := c.baseURL + "/v1/signals"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create signals request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intent API signals request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intent API signals returned status %d", resp.StatusCode)
	}

	var result signalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode signals response: %w", err)
	}

	signals := make([]Signal, 0, len(result.Signals))
	for _, s := range result.Signals {
		signals = append(signals, Signal{
			Subject:    s.Subject,
			Topic:      s.Topic,
			Score:      s.Score,
			ObservedAt: s.ObservedAt,
			Attributes: s.Attributes,
		})
	}
	return signals, nil
}
