package model

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a request does not name an analysis
// language.
const DefaultLanguage = "en"

// ProcessRequest is the pipeline entry point payload.
type ProcessRequest struct {
	ContentID       string `json:"contentId"`
	OwnerID         string `json:"ownerId,omitempty"`
	Language        string `json:"language,omitempty"`
	ForceRegenerate bool   `json:"forceRegenerate,omitempty"`
	SkipAcquisition bool   `json:"skipAcquisition,omitempty"`
}

// ProcessResponse reports the outcome of one pipeline run. Recoverable
// content problems are returned with Success=false over HTTP 200; only
// configuration and access errors map to non-200 statuses.
type ProcessResponse struct {
	Success           bool          `json:"success"`
	Cached            bool          `json:"cached"`
	SectionsGenerated []SectionType `json:"sectionsGenerated"`
	Language          string        `json:"language"`
	Message           string        `json:"message,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
	UpgradeRequired   bool          `json:"upgradeRequired,omitempty"`
}

// NormalizeLanguage canonicalizes a requested language to a base BCP 47
// tag ("en", "de"). Unparseable input falls back to the default.
func NormalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	base, _ := tag.Base()
	return base.String()
}
