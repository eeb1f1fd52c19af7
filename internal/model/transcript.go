package model

import (
	"fmt"
	"strings"
	"time"
)

// TranscriptChunk is one time-coded piece of a transcript as returned by
// the video metadata or audio transcription service.
type TranscriptChunk struct {
	Offset  time.Duration `json:"offset"`
	Text    string        `json:"text"`
	Speaker string        `json:"speaker,omitempty"`
}

// GroupTranscript merges raw chunks into fixed-duration intervals for
// readability, prefixing each interval with its [mm:ss] start marker.
// A non-positive interval defaults to one minute.
func GroupTranscript(chunks []TranscriptChunk, interval time.Duration) string {
	if len(chunks) == 0 {
		return ""
	}
	if interval <= 0 {
		interval = time.Minute
	}

	var b strings.Builder
	currentBucket := time.Duration(-1)
	lineOpen := false

	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		bucket := c.Offset / interval
		if time.Duration(bucket) != currentBucket {
			if lineOpen {
				b.WriteString("\n")
			}
			b.WriteString(formatOffset(time.Duration(bucket) * interval))
			b.WriteString(" ")
			currentBucket = time.Duration(bucket)
			lineOpen = true
		} else {
			b.WriteString(" ")
		}
		if c.Speaker != "" {
			b.WriteString(c.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(text)
	}

	return b.String()
}

func formatOffset(d time.Duration) string {
	total := int(d.Seconds())
	if total >= 3600 {
		return fmt.Sprintf("[%d:%02d:%02d]", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("[%02d:%02d]", total/60, total%60)
}
