// Package model defines the core domain types for the content pipeline.
package model

import (
	"net/url"
	"strings"
	"time"
)

// ContentType identifies what kind of external content an item refers to.
type ContentType string

const (
	TypeVideo      ContentType = "video"
	TypeArticle    ContentType = "article"
	TypePodcast    ContentType = "podcast"
	TypeDocument   ContentType = "document"
	TypeSocialPost ContentType = "social_post"
)

// acquisitionFailedSentinel marks content whose text acquisition failed
// terminally. Stored in RawText so downstream consumers can distinguish
// "no usable text" from "not yet acquired".
const acquisitionFailedSentinel = "[acquisition-failed]"

// ContentItem is one piece of ingested external content. Created on the
// ingestion request; mutated by acquisition adapters and tag/tone side
// writes; never deleted by the pipeline.
type ContentItem struct {
	ID                 string            `json:"id"`
	URL                string            `json:"url"` // normalized
	Type               ContentType       `json:"type"`
	OwnerID            string            `json:"owner_id"`
	Title              string            `json:"title,omitempty"`
	RawText            string            `json:"raw_text,omitempty"`
	StructuredMetadata map[string]string `json:"structured_metadata,omitempty"`
	Tags               []string          `json:"tags,omitempty"`
	Tone               string            `json:"tone,omitempty"`
	AnalysisLanguage   string            `json:"analysis_language"`
	RegenerationCount  int               `json:"regeneration_count"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasUsableText reports whether the item carries acquired text that is not
// the failure sentinel.
func (c *ContentItem) HasUsableText() bool {
	return c.RawText != "" && c.RawText != acquisitionFailedSentinel
}

// MarkAcquisitionFailed records the terminal failure sentinel on the item.
func (c *ContentItem) MarkAcquisitionFailed() {
	c.RawText = acquisitionFailedSentinel
}

// AcquisitionFailedSentinel exposes the sentinel value for persistence.
func AcquisitionFailedSentinel() string { return acquisitionFailedSentinel }

// NormalizeURL canonicalizes a content URL for cache matching: lowercased
// scheme/host, default ports and fragments dropped, tracking parameters
// removed, trailing slash trimmed.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" || param == "ref" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// IsEphemeralURL reports whether a URL indicates ephemeral or private origin
// (uploaded-document pseudo-URLs, data URIs). Such content must never be
// matched across tenants.
func IsEphemeralURL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"upload://", "file://", "data:", "blob:", "local://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Domain extracts the registrable host of the content URL, or "" if the URL
// does not parse.
func (c *ContentItem) Domain() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
