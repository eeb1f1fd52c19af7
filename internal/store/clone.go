package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lensview/insight/internal/model"
)

// cloneAnalysis copies a completed analysis (status, provenance, sections)
// and its claims from one content item to another using the store's own
// upsert primitives, re-keying claims under the new owner. Shared by both
// backends.
func cloneAnalysis(ctx context.Context, s Store, fromContentID, toContentID, language, newOwnerID string) error {
	src, err := s.GetAnalysis(ctx, fromContentID, language)
	if err != nil {
		return eris.Wrapf(err, "store: clone: load source analysis %s/%s", fromContentID, language)
	}
	if src.Status != model.StatusComplete {
		return eris.Errorf("store: clone: source analysis %s/%s is %s, not complete", fromContentID, language, src.Status)
	}

	if err := s.EnsureAnalysis(ctx, toContentID, language); err != nil {
		return eris.Wrap(err, "store: clone: ensure target analysis")
	}

	for _, sec := range src.Sections {
		if err := s.UpsertSection(ctx, toContentID, language, sec); err != nil {
			return eris.Wrapf(err, "store: clone: copy section %s", sec.Type)
		}
	}

	if err := s.AddAnalysisProvenance(ctx, toContentID, language, src.Provenance); err != nil {
		return eris.Wrap(err, "store: clone: copy provenance")
	}

	claims, err := s.ListClaims(ctx, fromContentID)
	if err != nil {
		return eris.Wrap(err, "store: clone: list source claims")
	}
	if len(claims) > 0 {
		cloned := make([]model.Claim, len(claims))
		for i, c := range claims {
			c.ID = uuid.New().String()
			c.ContentID = toContentID
			c.OwnerID = newOwnerID
			c.CreatedAt = time.Now().UTC()
			cloned[i] = c
		}
		if err := s.ReplaceClaims(ctx, toContentID, cloned); err != nil {
			return eris.Wrap(err, "store: clone: copy claims")
		}
	}

	if err := s.SetAnalysisStatus(ctx, toContentID, language, model.StatusComplete); err != nil {
		return eris.Wrap(err, "store: clone: mark complete")
	}

	return nil
}
