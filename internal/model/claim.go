package model

import (
	"strings"
	"time"
	"unicode"
)

// ClaimStatus is the verification verdict for a single claim.
type ClaimStatus string

const (
	ClaimVerified   ClaimStatus = "verified"
	ClaimDisputed   ClaimStatus = "disputed"
	ClaimUnverified ClaimStatus = "unverified"
	ClaimFalse      ClaimStatus = "false"
)

// Claim is one fact-checkable statement derived from the truth-check
// section. Claims are fully replaced (delete+insert) on regeneration to
// avoid orphaned stale rows.
type Claim struct {
	ID             string      `json:"id"`
	ContentID      string      `json:"content_id"`
	OwnerID        string      `json:"owner_id"`
	Text           string      `json:"text"`
	NormalizedText string      `json:"normalized_text"`
	Status         ClaimStatus `json:"status"`
	Severity       string      `json:"severity,omitempty"`
	Sources        []string    `json:"sources,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NormalizeClaim produces the dedup key for a claim: lowercased, whitespace
// collapsed, punctuation stripped.
func NormalizeClaim(text string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
