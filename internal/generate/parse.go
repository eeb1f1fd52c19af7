package generate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lensview/insight/internal/model"
)

// ParseTriage decodes a triage section body into its routing verdict.
func ParseTriage(body []byte) (*model.TriageVerdict, error) {
	var v model.TriageVerdict
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, eris.Wrap(err, "generate: decode triage body")
	}
	return &v, nil
}

// tagsBody is the decoded tags section payload.
type tagsBody struct {
	Tags []string `json:"tags"`
	Tone string   `json:"tone"`
}

// ParseTags decodes a tags section body.
func ParseTags(body []byte) ([]string, string, error) {
	var t tagsBody
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, "", eris.Wrap(err, "generate: decode tags body")
	}
	return t.Tags, t.Tone, nil
}

// ClaimsFromTruthCheck converts a gated truth-check body into claim rows
// and the run's domain-stat contribution. Claims with duplicate normalized
// text keep only the first occurrence.
func ClaimsFromTruthCheck(body []byte, item *model.ContentItem, qualityScore float64) ([]model.Claim, model.DomainStatDelta, error) {
	var tc truthCheckBody
	if err := json.Unmarshal(body, &tc); err != nil {
		return nil, model.DomainStatDelta{}, eris.Wrap(err, "generate: decode truth-check body")
	}

	delta := model.DomainStatDelta{
		Domain:       item.Domain(),
		QualityScore: qualityScore,
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	var claims []model.Claim
	for _, c := range tc.Claims {
		normalized := model.NormalizeClaim(c.Text)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true

		status := model.ClaimStatus(c.Status)
		switch status {
		case model.ClaimVerified:
			delta.Verified++
		case model.ClaimDisputed:
			delta.Disputed++
		case model.ClaimFalse:
			delta.False++
		default:
			status = model.ClaimUnverified
			delta.Unverified++
		}

		claims = append(claims, model.Claim{
			ID:             uuid.New().String(),
			ContentID:      item.ID,
			OwnerID:        item.OwnerID,
			Text:           c.Text,
			NormalizedText: normalized,
			Status:         status,
			Severity:       c.Severity,
			Sources:        c.Sources,
			CreatedAt:      now,
		})
	}

	return claims, delta, nil
}
