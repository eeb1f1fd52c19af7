// Package reader provides a client for the article extraction service:
// a URL in, title + markdown text + description + thumbnail out.
package reader

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lensview/insight/internal/resilience"
)

const defaultBaseURL = "https://r.jina.ai"

// Client extracts readable content from web pages.
type Client interface {
	Extract(ctx context.Context, targetURL string) (*Extraction, error)
}

// Extraction is the readable form of one page.
type Extraction struct {
	Title       string `json:"title"`
	Markdown    string `json:"markdown"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
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

// NewClient creates an article extraction client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wireResponse is the service's JSON envelope.
type wireResponse struct {
	Code int `json:"code"`
	Data struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		Description string `json:"description"`
		Images      map[string]string `json:"images"`
	} `json:"data"`
}

func (c *httpClient) Extract(ctx context.Context, targetURL string) (*Extraction, error) {
	endpoint := c.baseURL + "/" + url.QueryEscape(targetURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reader: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "reader: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reader: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("reader: unexpected status %d for %s", resp.StatusCode, targetURL))
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, resilience.NewMalformedResponseError(eris.Wrap(err, "reader: unmarshal response"))
	}

	out := &Extraction{
		Title:       wire.Data.Title,
		Markdown:    wire.Data.Content,
		Description: wire.Data.Description,
	}
	for _, img := range wire.Data.Images {
		out.Thumbnail = img
		break
	}

	return out, nil
}
