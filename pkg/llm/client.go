// Package llm provides the completion client used by the section
// generators, backed by the official anthropic-sdk-go.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/lensview/insight/internal/resilience"
)

// Client defines the completion operations used by the pipeline.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	JSONMode    bool // constrain the response to a single JSON object
	Temperature *float64
	MaxTokens   int64
}

// CompletionResponse is the assistant's reply plus token usage.
type CompletionResponse struct {
	Text       string
	Model      string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption for provenance and billing.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Option configures the client.
type Option func(*sdkClient)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *sdkClient) {
		c.opts = append(c.opts, option.WithBaseURL(url))
	}
}

// WithRequestsPerSecond applies client-side request smoothing.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *sdkClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *sdkClient) {
		c.timeout = d
	}
}

type sdkClient struct {
	client  sdk.Client
	opts    []option.RequestOption
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient creates a completion client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		opts:    []option.RequestOption{option.WithAPIKey(apiKey)},
		timeout: 90 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	c.client = sdk.NewClient(c.opts...)
	return c
}

func (c *sdkClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages := []sdk.MessageParam{
		sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
	}
	if req.JSONMode {
		// Prefill the assistant turn so the model must continue a JSON
		// object instead of opening with prose.
		messages = append(messages, sdk.NewAssistantMessage(sdk.NewTextBlock("{")))
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}

	out := text.String()
	if req.JSONMode {
		out = "{" + out
	}

	return &CompletionResponse{
		Text:       out,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

// wrapAPIError converts SDK errors into status-coded errors so retry policy
// can branch on class.
func wrapAPIError(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return resilience.NewStatusError(apierr.StatusCode, eris.Wrap(err, "llm: create message"))
	}
	return eris.Wrap(err, "llm: create message")
}
