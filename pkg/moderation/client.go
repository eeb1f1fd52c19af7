// Package moderation provides a client for the content screening service.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lensview/insight/internal/resilience"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client screens text for policy violations.
type Client interface {
	Screen(ctx context.Context, text string) (*Verdict, error)
}

// Verdict is the screening outcome. Category is set only when flagged.
type Verdict struct {
	Flagged  bool   `json:"flagged"`
	Category string `json:"category,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a moderation client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type wireResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

func (c *httpClient) Screen(ctx context.Context, text string) (*Verdict, error) {
	body, err := json.Marshal(map[string]string{"input": text})
	if err != nil {
		return nil, eris.Wrap(err, "moderation: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "moderation: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "moderation: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "moderation: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("moderation: unexpected status %d", resp.StatusCode))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, resilience.NewMalformedResponseError(eris.Wrap(err, "moderation: unmarshal response"))
	}

	verdict := &Verdict{}
	if len(wire.Results) > 0 {
		verdict.Flagged = wire.Results[0].Flagged
		for cat, hit := range wire.Results[0].Categories {
			if hit {
				verdict.Category = cat
				break
			}
		}
	}

	return verdict, nil
}
