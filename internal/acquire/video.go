package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/lensview/insight/internal/fault"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/resilience"
	"github.com/lensview/insight/pkg/videometa"
)

// acquireVideo fetches video metadata and its time-coded transcript, then
// groups the transcript into readable intervals.
func (a *Acquirer) acquireVideo(ctx context.Context, item *model.ContentItem) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout())
	defer cancel()

	video, err := resilience.Do(callCtx, a.fetchPolicy("video lookup"),
		func(ctx context.Context) (*videometa.Video, error) {
			return a.videos.Lookup(ctx, item.URL)
		})
	if err != nil {
		return nil, classifyFetchError(err, "video_metadata")
	}

	if len(video.Transcript) == 0 {
		return nil, fault.New(fault.AcquisitionFailed,
			fmt.Errorf("acquire: video %s has no transcript", item.URL)).
			WithSubtype("no_transcript").
			WithHint("This video has no captions or transcript available.")
	}

	chunks := make([]model.TranscriptChunk, 0, len(video.Transcript))
	for _, c := range video.Transcript {
		chunks = append(chunks, model.TranscriptChunk{
			Offset: time.Duration(c.OffsetMillis) * time.Millisecond,
			Text:   c.Text,
		})
	}

	metadata := map[string]string{
		"channel":  video.Channel,
		"duration": video.Duration.String(),
	}
	if !video.PublishedAt.IsZero() {
		metadata["published_at"] = video.PublishedAt.Format(time.RFC3339)
	}
	for k, v := range video.Metadata {
		metadata[k] = v
	}

	return &Result{
		Title:    video.Title,
		Text:     model.GroupTranscript(chunks, a.transcriptInterval()),
		Metadata: metadata,
	}, nil
}
