package acquire

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lensview/insight/internal/fault"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/resilience"
	"github.com/lensview/insight/pkg/reader"
)

var stripTags = bluemonday.StrictPolicy()

// acquireArticle extracts readable text for articles and social posts.
func (a *Acquirer) acquireArticle(ctx context.Context, item *model.ContentItem) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout())
	defer cancel()

	extraction, err := resilience.Do(callCtx, a.fetchPolicy("article extract"),
		func(ctx context.Context) (*reader.Extraction, error) {
			return a.articles.Extract(ctx, item.URL)
		})
	if err != nil {
		return nil, classifyFetchError(err, "article_extract")
	}

	text := cleanExtractedText(extraction.Markdown)
	if text == "" {
		return nil, fault.New(fault.AcquisitionFailed,
			fmt.Errorf("acquire: no readable text at %s", item.URL)).
			WithSubtype("empty_extraction").
			WithHint("The page produced no readable text. It may require a login or render entirely in JavaScript.")
	}

	metadata := map[string]string{}
	if extraction.Description != "" {
		metadata["description"] = extraction.Description
	}
	if extraction.Thumbnail != "" {
		metadata["thumbnail"] = extraction.Thumbnail
	}

	return &Result{
		Title:    extraction.Title,
		Text:     text,
		Metadata: metadata,
	}, nil
}

// acquireDocument passes through text already attached at upload time.
func (a *Acquirer) acquireDocument(item *model.ContentItem) (*Result, error) {
	if !item.HasUsableText() {
		return nil, fault.New(fault.AcquisitionFailed,
			fmt.Errorf("acquire: document %s carries no text", item.ID)).
			WithSubtype("empty_document").
			WithHint("The uploaded document contained no extractable text. Try re-uploading it in a text-based format.")
	}
	return &Result{
		Title:    item.Title,
		Text:     item.RawText,
		Metadata: item.StructuredMetadata,
	}, nil
}

// cleanExtractedText strips residual HTML from extractor output and
// collapses excess blank lines.
func cleanExtractedText(raw string) string {
	cleaned := html.UnescapeString(stripTags.Sanitize(raw))
	lines := strings.Split(cleaned, "\n")
	var b strings.Builder
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
