package generate

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"
)

// truthCheckBody is the decoded truth-check section payload.
type truthCheckBody struct {
	Claims     []truthClaim `json:"claims"`
	References []string     `json:"references"`
}

type truthClaim struct {
	Text     string   `json:"text"`
	Status   string   `json:"status"`
	Severity string   `json:"severity,omitempty"`
	Sources  []string `json:"sources,omitempty"`
}

var inlineMarker = regexp.MustCompile(`\[(\d+)\]`)

// GateCitations enforces the anti-hallucination citation policy on a
// truth-check body: every cited URL must come from the enrichment search
// set, references are deduplicated, and inline [n] markers pointing past
// the surviving reference list are removed.
func GateCitations(body []byte, allowed map[string]bool) ([]byte, error) {
	var tc truthCheckBody
	if err := json.Unmarshal(body, &tc); err != nil {
		return nil, eris.Wrap(err, "generate: decode truth-check body")
	}

	for i := range tc.Claims {
		var kept []string
		for _, src := range tc.Claims[i].Sources {
			if allowed[src] {
				kept = append(kept, src)
			}
		}
		tc.Claims[i].Sources = kept
	}

	seen := make(map[string]bool)
	var refs []string
	for _, ref := range tc.References {
		if !allowed[ref] || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	tc.References = refs

	for i := range tc.Claims {
		tc.Claims[i].Text = stripDanglingMarkers(tc.Claims[i].Text, len(refs))
	}

	out, err := json.Marshal(tc)
	if err != nil {
		return nil, eris.Wrap(err, "generate: encode truth-check body")
	}
	return out, nil
}

// stripDanglingMarkers removes inline [n] markers whose index exceeds the
// reference count.
func stripDanglingMarkers(text string, refCount int) string {
	return inlineMarker.ReplaceAllStringFunc(text, func(m string) string {
		var n int
		if _, err := fmt.Sscanf(m, "[%d]", &n); err != nil {
			return m
		}
		if n < 1 || n > refCount {
			return ""
		}
		return m
	})
}
