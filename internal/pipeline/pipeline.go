// Package pipeline orchestrates the content analysis run: acquisition,
// moderation gate, time-boxed enrichment, settle-all section generation,
// self-heal retry and finalization, with cross-tenant caching and quota
// gating at the front.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lensview/insight/internal/acquire"
	"github.com/lensview/insight/internal/cache"
	"github.com/lensview/insight/internal/config"
	"github.com/lensview/insight/internal/enrich"
	"github.com/lensview/insight/internal/generate"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/store"
	"github.com/lensview/insight/internal/usage"
	"github.com/lensview/insight/pkg/moderation"
)

// ErrQuotaExceeded marks a run refused by the monthly quota gate. The HTTP
// layer maps it to 403 with upgradeRequired.
var ErrQuotaExceeded = errors.New("pipeline: monthly quota exceeded")

// Acquirer fetches text for a content item.
type Acquirer interface {
	Acquire(ctx context.Context, item *model.ContentItem) (*acquire.Result, error)
}

// Enricher gathers optional pre-generation context.
type Enricher interface {
	Run(ctx context.Context, item *model.ContentItem, opts enrich.Options) *enrich.Context
}

// SectionGenerator produces one report section.
type SectionGenerator interface {
	Section(ctx context.Context, section model.SectionType, item *model.ContentItem, ec *enrich.Context) (*generate.SectionResult, error)
}

// Pipeline runs content analyses.
type Pipeline struct {
	cfg       config.PipelineConfig
	store     store.Store
	acquirer  Acquirer
	moderator moderation.Client
	enricher  Enricher
	generator SectionGenerator
	cache     *cache.Reuser
	quota     *usage.Quota
}

// New creates a Pipeline. The cache reuser and moderator may be nil; those
// stages are then skipped.
func New(
	cfg config.PipelineConfig,
	st store.Store,
	acquirer Acquirer,
	moderator moderation.Client,
	enricher Enricher,
	generator SectionGenerator,
	reuser *cache.Reuser,
	quota *usage.Quota,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		acquirer:  acquirer,
		moderator: moderator,
		enricher:  enricher,
		generator: generator,
		cache:     reuser,
		quota:     quota,
	}
}

// Process runs one analysis end to end. Recoverable content problems are
// reported inside the response with Success=false; returned errors are
// reserved for not-found, quota and configuration failures.
func (p *Pipeline) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessResponse, error) {
	language := model.NormalizeLanguage(req.Language)
	resp := &model.ProcessResponse{Language: language}

	item, err := p.store.GetContentItem(ctx, req.ContentID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != "" {
		item.OwnerID = req.OwnerID
	}
	if item.AnalysisLanguage == "" {
		item.AnalysisLanguage = language
	}

	if err := p.store.EnsureAnalysis(ctx, item.ID, language); err != nil {
		return nil, err
	}

	if req.ForceRegenerate {
		if err := p.store.IncrementRegeneration(ctx, item.ID); err != nil {
			zap.L().Warn("regeneration counter not incremented",
				zap.String("content_id", item.ID), zap.Error(err))
		}
		if err := p.store.ResetAnalysis(ctx, item.ID, language); err != nil {
			return nil, err
		}
	} else {
		existing, err := p.store.GetAnalysis(ctx, item.ID, language)
		if err == nil && existing.Status == model.StatusComplete {
			for _, section := range model.AllSections {
				if _, ok := existing.Sections[section]; ok {
					resp.SectionsGenerated = append(resp.SectionsGenerated, section)
				}
			}
			resp.Success = true
			resp.Message = "analysis already complete"
			return resp, nil
		}
	}

	// Forced regeneration bypasses the quota gate; the owner already paid
	// for this content once.
	reserved := false
	if !req.ForceRegenerate && p.quota != nil {
		decision := p.quota.Reserve(ctx, item.OwnerID, model.FeatureAnalysis)
		if !decision.Allowed {
			resp.UpgradeRequired = true
			resp.Message = "monthly analysis limit reached"
			return resp, ErrQuotaExceeded
		}
		reserved = true
	}

	deadline := time.Duration(p.cfg.GlobalDeadlineSecs) * time.Second
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	out, err := p.run(runCtx, req, item, language, resp)

	// Only a run that produced a result is billable; a refusal or failed
	// acquisition hands the reserved unit back.
	if reserved && (err != nil || out == nil || !out.Success) {
		p.quota.Release(context.WithoutCancel(ctx), item.OwnerID, model.FeatureAnalysis)
	}
	return out, err
}
