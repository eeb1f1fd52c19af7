// Package acquire turns a content item's external reference into usable
// text. Each content type has its own adapter; all of them classify
// failures into the closed fault taxonomy so the pipeline can branch on
// structure instead of message text.
package acquire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lensview/insight/internal/config"
	"github.com/lensview/insight/internal/fault"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/resilience"
	"github.com/lensview/insight/pkg/reader"
	"github.com/lensview/insight/pkg/transcribe"
	"github.com/lensview/insight/pkg/videometa"
)

// Result is the outcome of a successful acquisition.
type Result struct {
	Title    string
	Text     string
	Metadata map[string]string
}

// Acquirer dispatches acquisition to per-type adapters.
type Acquirer struct {
	cfg         config.AcquireConfig
	videos      videometa.Client
	articles    reader.Client
	transcriber transcribe.Client
	callbackURL string
	http        *http.Client
}

// New creates an Acquirer.
func New(cfg config.AcquireConfig, videos videometa.Client, articles reader.Client, transcriber transcribe.Client, callbackURL string) *Acquirer {
	return &Acquirer{
		cfg:         cfg,
		videos:      videos,
		articles:    articles,
		transcriber: transcriber,
		callbackURL: callbackURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.CallTimeoutSecs) * time.Second,
		},
	}
}

// Acquire fetches the text for item according to its content type.
func (a *Acquirer) Acquire(ctx context.Context, item *model.ContentItem) (*Result, error) {
	sw := fault.StartStopwatch()
	defer func() {
		zap.L().Info("acquisition finished",
			zap.String("content_id", item.ID),
			zap.String("type", string(item.Type)),
			zap.Int64("elapsed_ms", sw.ElapsedMillis()),
		)
	}()

	switch item.Type {
	case model.TypeVideo:
		return a.acquireVideo(ctx, item)
	case model.TypeArticle, model.TypeSocialPost:
		return a.acquireArticle(ctx, item)
	case model.TypePodcast:
		return a.acquirePodcast(ctx, item)
	case model.TypeDocument:
		return a.acquireDocument(item)
	default:
		return nil, fault.New(fault.AcquisitionFailed,
			fmt.Errorf("acquire: unsupported content type %q", item.Type)).
			WithSubtype("unsupported_type")
	}
}

// fetchPolicy is the retry policy for metadata and text fetches.
func (a *Acquirer) fetchPolicy(operation string) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = a.cfg.FetchAttempts
	p.OnRetry = resilience.Logger("acquire", operation)
	return p
}

// scrapePolicy is the retry policy for page scrapes, which tolerate more
// attempts than vendor API calls.
func (a *Acquirer) scrapePolicy(operation string) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = a.cfg.ScrapeAttempts
	p.OnRetry = resilience.Logger("acquire", operation)
	return p
}

func (a *Acquirer) callTimeout() time.Duration {
	if a.cfg.CallTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.cfg.CallTimeoutSecs) * time.Second
}

func (a *Acquirer) transcriptInterval() time.Duration {
	if a.cfg.TranscriptInterval <= 0 {
		return time.Minute
	}
	return time.Duration(a.cfg.TranscriptInterval) * time.Second
}

// classifyFetchError converts a vendor fetch error into the fault taxonomy.
func classifyFetchError(err error, sub string) *fault.Error {
	code := resilience.StatusCodeOf(err)
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return fault.New(fault.ContentUnavailable, err).WithSubtype(sub).
			WithHint("The content could not be found at its source. It may have been removed or made private.")
	case code == http.StatusTooManyRequests:
		return fault.NewRetryable(fault.RateLimited, err).WithSubtype(sub)
	case resilience.Classify(err) == resilience.ClassRetry:
		return fault.NewRetryable(fault.AcquisitionFailed, err).WithSubtype(sub)
	default:
		return fault.New(fault.AcquisitionFailed, err).WithSubtype(sub)
	}
}
