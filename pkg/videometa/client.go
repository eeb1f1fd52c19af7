// Package videometa provides a client for the video metadata and
// transcript service.
package videometa

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

// Client looks up video metadata and transcripts.
type Client interface {
	Lookup(ctx context.Context, videoRef string) (*Video, error)
}

// Video is the structured metadata plus time-coded transcript for one
// video reference.
type Video struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Channel     string            `json:"channel"`
	Duration    time.Duration     `json:"duration"`
	PublishedAt time.Time         `json:"published_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Transcript  []TranscriptChunk `json:"transcript"`
}

// TranscriptChunk is one time-coded transcript segment.
type TranscriptChunk struct {
	OffsetMillis int64  `json:"offset_millis"`
	Text         string `json:"text"`
}

// Option configures the client.
type Option func(*httpClient)

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

// NewClient creates a video metadata client.
func NewClient(apiKey, baseURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// wireVideo is the service's JSON shape.
type wireVideo struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Channel      string            `json:"channel"`
	DurationSecs int64             `json:"duration_secs"`
	PublishedAt  string            `json:"published_at"`
	Metadata     map[string]string `json:"metadata"`
	Transcript   []struct {
		OffsetMillis int64  `json:"offset_ms"`
		Text         string `json:"text"`
	} `json:"transcript"`
}

func (c *httpClient) Lookup(ctx context.Context, videoRef string) (*Video, error) {
	endpoint := c.baseURL + "/v1/videos?ref=" + url.QueryEscape(videoRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "videometa: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "videometa: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "videometa: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("videometa: unexpected status %d for %s", resp.StatusCode, videoRef))
	}

	var wire wireVideo
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, resilience.NewMalformedResponseError(eris.Wrap(err, "videometa: unmarshal response"))
	}

	out := &Video{
		ID:       wire.ID,
		Title:    wire.Title,
		Channel:  wire.Channel,
		Duration: time.Duration(wire.DurationSecs) * time.Second,
		Metadata: wire.Metadata,
	}
	if wire.PublishedAt != "" {
		if ts, parseErr := time.Parse(time.RFC3339, wire.PublishedAt); parseErr == nil {
			out.PublishedAt = ts
		}
	}
	for _, chunk := range wire.Transcript {
		out.Transcript = append(out.Transcript, TranscriptChunk{
			OffsetMillis: chunk.OffsetMillis,
			Text:         chunk.Text,
		})
	}

	return out, nil
}
