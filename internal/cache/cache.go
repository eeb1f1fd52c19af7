// Package cache implements cross-tenant analysis reuse. Two levels exist:
// a full hit clones a completed analysis in the requested language, a
// text-only hit copies just the acquired text and metadata so the pipeline
// skips acquisition. Ephemeral and private pseudo-URLs never match.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/config"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/store"
)

// HitKind distinguishes the two reuse levels.
type HitKind int

const (
	// HitFull means a completed analysis in the target language can be
	// cloned wholesale.
	HitFull HitKind = iota
	// HitTextOnly means only acquired text and metadata can be reused.
	HitTextOnly
)

// Hit is one reusable prior content item.
type Hit struct {
	Kind   HitKind
	Source *model.ContentItem
}

// Reuser looks up and applies cross-tenant cache hits.
type Reuser struct {
	cfg   config.CacheConfig
	store store.Store
	now   func() time.Time
}

// New creates a Reuser.
func New(cfg config.CacheConfig, st store.Store) *Reuser {
	return &Reuser{cfg: cfg, store: st, now: time.Now}
}

// WithClock overrides the time source (for staleness tests).
func (r *Reuser) WithClock(now func() time.Time) *Reuser {
	r.now = now
	return r
}

// candidateLimit bounds how many prior rows one lookup inspects.
const candidateLimit = 5

// Lookup finds the best reusable prior item for the target, or nil on a
// miss. A candidate with a completed analysis in the requested language is
// a full hit; otherwise the freshest candidate yields a text-only hit.
func (r *Reuser) Lookup(ctx context.Context, item *model.ContentItem, language string) *Hit {
	if !r.cfg.Enabled {
		return nil
	}
	if model.IsEphemeralURL(item.URL) {
		return nil
	}

	staleness := r.cfg.StalenessFor(string(item.Type))
	candidates, err := r.store.FindCacheCandidates(ctx, store.CandidateFilter{
		NormalizedURL: item.URL,
		Type:          item.Type,
		ExcludeOwner:  item.OwnerID,
		NewerThan:     r.now().Add(-staleness),
		Limit:         candidateLimit,
	})
	if err != nil {
		zap.L().Warn("cache candidate lookup failed",
			zap.String("content_id", item.ID), zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	for i := range candidates {
		analysis, err := r.store.GetAnalysis(ctx, candidates[i].ID, language)
		if err != nil {
			continue
		}
		if analysis.Status == model.StatusComplete {
			return &Hit{Kind: HitFull, Source: &candidates[i]}
		}
	}

	return &Hit{Kind: HitTextOnly, Source: &candidates[0]}
}

// ApplyText copies the source's acquired text and metadata onto the target
// item, both in memory and in the store.
func (r *Reuser) ApplyText(ctx context.Context, hit *Hit, item *model.ContentItem) error {
	src := hit.Source
	if err := r.store.UpdateContentAcquisition(ctx, item.ID, src.Title, src.RawText, src.StructuredMetadata); err != nil {
		return eris.Wrap(err, "cache: copy acquired text")
	}
	item.Title = src.Title
	item.RawText = src.RawText
	item.StructuredMetadata = src.StructuredMetadata
	return nil
}

// ApplyFull clones the source's completed analysis onto the target:
// acquired text, tags, tone, sections, provenance and claims. A failure
// here is recoverable; the caller falls through to the normal pipeline.
func (r *Reuser) ApplyFull(ctx context.Context, hit *Hit, item *model.ContentItem, language string) error {
	if err := r.ApplyText(ctx, hit, item); err != nil {
		return err
	}

	src := hit.Source
	if len(src.Tags) > 0 {
		if err := r.store.SetContentTags(ctx, item.ID, src.Tags); err != nil {
			return eris.Wrap(err, "cache: copy tags")
		}
		item.Tags = src.Tags
	}
	if src.Tone != "" {
		if err := r.store.SetContentTone(ctx, item.ID, src.Tone); err != nil {
			return eris.Wrap(err, "cache: copy tone")
		}
		item.Tone = src.Tone
	}

	if err := r.store.CloneAnalysis(ctx, src.ID, item.ID, language, item.OwnerID); err != nil {
		return eris.Wrap(err, "cache: clone analysis")
	}

	zap.L().Info("analysis served from cache",
		zap.String("content_id", item.ID),
		zap.String("source_content_id", src.ID),
		zap.String("language", language),
	)
	return nil
}
