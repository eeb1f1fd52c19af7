// Package transcribe provides a client for the asynchronous audio
// transcription service. Jobs are submitted with a callback URL; completion
// normally arrives via callback, with polling as the recovery path.
package transcribe

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

// Client submits transcription jobs and fetches their results.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	GetJob(ctx context.Context, trackingID string) (*Job, error)
}

// SubmitRequest describes one transcription job.
type SubmitRequest struct {
	AudioURL    string `json:"audio_url"`
	CallbackURL string `json:"callback_url,omitempty"`
	Language    string `json:"language,omitempty"`
}

// SubmitResponse is the accepted-with-tracking-id acknowledgement.
type SubmitResponse struct {
	TrackingID string `json:"tracking_id"`
}

// Job is the state of a transcription job.
type Job struct {
	TrackingID string      `json:"tracking_id"`
	Status     string      `json:"status"` // "queued", "processing", "completed", "failed"
	Utterances []Utterance `json:"utterances,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Utterance is one diarized, time-coded segment.
type Utterance struct {
	Speaker      string `json:"speaker"`
	OffsetMillis int64  `json:"offset_ms"`
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

// NewClient creates a transcription client.
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

func (c *httpClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: read response")
	}

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("transcribe: unexpected status %d", resp.StatusCode))
	}

	var out SubmitResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, resilience.NewMalformedResponseError(eris.Wrap(err, "transcribe: unmarshal response"))
	}

	return &out, nil
}

func (c *httpClient) GetJob(ctx context.Context, trackingID string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/jobs/"+trackingID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "transcribe: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("transcribe: unexpected status %d for job %s", resp.StatusCode, trackingID))
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, resilience.NewMalformedResponseError(eris.Wrap(err, "transcribe: unmarshal response"))
	}

	return &job, nil
}
