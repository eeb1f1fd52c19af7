package acquire

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/fault"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/resilience"
	"github.com/lensview/insight/pkg/transcribe"
)

// acquirePodcast resolves the episode's direct audio URL, submits it for
// transcription and waits for the diarized transcript.
func (a *Acquirer) acquirePodcast(ctx context.Context, item *model.ContentItem) (*Result, error) {
	audioURL, strategy, err := a.resolveAudio(ctx, item)
	if err != nil {
		return nil, err
	}

	zap.L().Info("podcast audio resolved",
		zap.String("content_id", item.ID),
		zap.String("strategy", strategy),
	)

	job, err := a.transcribeAudio(ctx, audioURL, item.AnalysisLanguage)
	if err != nil {
		return nil, err
	}

	chunks := make([]model.TranscriptChunk, 0, len(job.Utterances))
	for _, u := range job.Utterances {
		chunks = append(chunks, model.TranscriptChunk{
			Offset:  time.Duration(u.OffsetMillis) * time.Millisecond,
			Text:    u.Text,
			Speaker: u.Speaker,
		})
	}

	text := model.GroupTranscript(chunks, a.transcriptInterval())
	if text == "" {
		return nil, fault.New(fault.MusicOrNonspeech,
			fmt.Errorf("acquire: transcription of %s produced no speech", audioURL)).
			WithHint("No speech was detected in this audio. Music and non-speech content cannot be analyzed.")
	}

	return &Result{
		Title: item.Title,
		Text:  text,
		Metadata: map[string]string{
			"audio_url":   audioURL,
			"resolved_by": strategy,
		},
	}, nil
}

// resolveAudio runs the strategy waterfall under a shared deadline. Each
// candidate is verified by content-type sniff before it wins.
func (a *Acquirer) resolveAudio(ctx context.Context, item *model.ContentItem) (string, string, error) {
	if isNoAudioHost(item.URL) {
		return "", "", fault.New(fault.AcquisitionFailed,
			fmt.Errorf("acquire: %s does not expose downloadable audio", hostOf(item.URL))).
			WithSubtype("platform_no_audio").
			WithHint("This platform does not provide downloadable audio. Share the episode from the show's own site or its RSS feed instead.")
	}

	deadline := time.Duration(a.cfg.WaterfallTimeoutSecs) * time.Second
	if deadline <= 0 {
		deadline = 45 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	feeds := gofeed.NewParser()
	strategies := []audioStrategy{
		directExtension{},
		platformRewrite{},
		directoryLookup{http: a.http, feeds: feeds},
		pageScrape{http: a.http, feeds: feeds, retry: a.scrapePolicy("page scrape")},
	}

	target := episodeTarget{
		PageURL:   item.URL,
		TitleHint: item.Title,
	}
	if raw, ok := item.StructuredMetadata["published_at"]; ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			target.Published = ts
		}
	}
	if raw, ok := item.StructuredMetadata["duration"]; ok {
		if d, err := time.ParseDuration(raw); err == nil {
			target.Duration = d
		}
	}

	var lastErr error
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}
		if !s.CanHandle(item.URL) {
			continue
		}

		candidate, err := s.Resolve(ctx, target)
		if err != nil {
			zap.L().Debug("audio strategy missed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		if err := a.verifyAudioURL(ctx, candidate); err != nil {
			zap.L().Debug("audio candidate rejected",
				zap.String("strategy", s.Name()),
				zap.String("candidate", candidate),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		return candidate, s.Name(), nil
	}

	if ctx.Err() != nil {
		return "", "", fault.NewRetryable(fault.Timeout,
			eris.Wrap(ctx.Err(), "acquire: audio resolution deadline")).
			WithSubtype("audio_resolution")
	}
	if lastErr == nil {
		lastErr = eris.Errorf("acquire: no strategy handled %s", item.URL)
	}
	return "", "", fault.New(fault.AcquisitionFailed, lastErr).
		WithSubtype("no_audio_found").
		WithHint("No downloadable audio could be located for this episode.")
}

// verifyAudioURL sniffs the candidate's content type with a HEAD request.
// An unreachable HEAD endpoint is tolerated when the URL itself looks like
// an audio file.
func (a *Acquirer) verifyAudioURL(ctx context.Context, candidate string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return eris.Wrap(err, "acquire: create sniff request")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if hasAudioExtension(candidate) {
			return nil
		}
		return eris.Wrap(err, "acquire: sniff candidate")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return eris.Errorf("acquire: candidate returned status %d", resp.StatusCode)
	}

	ctype := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ctype, "audio/"),
		ctype == "application/octet-stream",
		ctype == "" && hasAudioExtension(candidate):
		return nil
	default:
		return eris.Errorf("acquire: candidate content type %q is not audio", ctype)
	}
}

// transcribeAudio submits the job and waits for completion via polling.
func (a *Acquirer) transcribeAudio(ctx context.Context, audioURL, language string) (*transcribe.Job, error) {
	submitCtx, cancel := context.WithTimeout(ctx, a.callTimeout())
	defer cancel()

	submitted, err := resilience.Do(submitCtx, a.fetchPolicy("transcription submit"),
		func(ctx context.Context) (*transcribe.SubmitResponse, error) {
			return a.transcriber.Submit(ctx, transcribe.SubmitRequest{
				AudioURL:    audioURL,
				CallbackURL: a.callbackURL,
				Language:    language,
			})
		})
	if err != nil {
		code := resilience.StatusCodeOf(err)
		if code == http.StatusTooManyRequests {
			return nil, fault.NewRetryable(fault.RateLimited, err).WithSubtype("transcription_submit")
		}
		return nil, fault.New(fault.TranscriptionFailed, err).WithSubtype("submit")
	}

	job, err := transcribe.Poll(ctx, a.transcriber, submitted.TrackingID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fault.NewRetryable(fault.Timeout, err).WithSubtype("transcription_poll")
		}
		return nil, fault.New(fault.TranscriptionFailed, err).WithSubtype("poll")
	}

	return job, nil
}
