package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lensview/insight/internal/cache"
	"github.com/lensview/insight/internal/enrich"
	"github.com/lensview/insight/internal/fault"
	"github.com/lensview/insight/internal/generate"
	"github.com/lensview/insight/internal/model"
)

// run executes the pipeline stages under the global deadline.
func (p *Pipeline) run(ctx context.Context, req model.ProcessRequest, item *model.ContentItem, language string, resp *model.ProcessResponse) (*model.ProcessResponse, error) {
	sw := fault.StartStopwatch()

	textOnlyHit := false
	if p.cache != nil && !req.ForceRegenerate {
		if hit := p.cache.Lookup(ctx, item, language); hit != nil {
			switch hit.Kind {
			case cache.HitFull:
				if err := p.cache.ApplyFull(ctx, hit, item, language); err == nil {
					resp.Success = true
					resp.Cached = true
					resp.SectionsGenerated = model.AllSections
					return resp, nil
				} else {
					zap.L().Warn("full cache hit not applied, running pipeline",
						zap.String("content_id", item.ID), zap.Error(err))
				}
			case cache.HitTextOnly:
				if err := p.cache.ApplyText(ctx, hit, item); err == nil {
					textOnlyHit = true
				}
			}
		}
	}

	// Acquisition
	if !req.SkipAcquisition && !textOnlyHit && !item.HasUsableText() {
		if item.Type == model.TypePodcast {
			if err := p.store.SetAnalysisStatus(ctx, item.ID, language, model.StatusTranscribing); err != nil {
				zap.L().Warn("transcribing status not recorded",
					zap.String("content_id", item.ID), zap.Error(err))
			}
		}

		result, err := p.acquirer.Acquire(ctx, item)
		if err != nil {
			return p.failAcquisition(ctx, item, language, resp, err)
		}

		if err := p.store.UpdateContentAcquisition(ctx, item.ID, result.Title, result.Text, result.Metadata); err != nil {
			return nil, err
		}
		item.Title = result.Title
		item.RawText = result.Text
		item.StructuredMetadata = result.Metadata
	}

	if !item.HasUsableText() {
		resp.Message = messageFor(fault.AcquisitionFailed, "")
		return resp, nil
	}

	// Moderation gate: a flagged item is a terminal refusal.
	if p.moderator != nil {
		verdict, err := p.moderator.Screen(ctx, moderationSample(item.RawText))
		switch {
		case err != nil:
			zap.L().Warn("moderation screening unavailable, continuing",
				zap.String("content_id", item.ID), zap.Error(err))
			resp.Warnings = append(resp.Warnings, "content screening unavailable")
		case verdict.Flagged:
			// The vendor category stays in the logs; the user sees only a
			// generic explanation.
			zap.L().Info("content refused by screening",
				zap.String("content_id", item.ID),
				zap.String("category", verdict.Category),
			)
			if err := p.store.SetAnalysisStatus(ctx, item.ID, language, model.StatusRefused); err != nil {
				return nil, err
			}
			resp.Message = messageFor(fault.ContentPolicyViolation, "")
			return resp, nil
		}
	}

	// Enrichment
	ec := p.enricher.Run(ctx, item, enrich.Options{SkipSearch: textOnlyHit})
	resp.Warnings = append(resp.Warnings, ec.Warnings...)

	// Generation: settle-all fan-out, then gated persistence.
	outcome := p.generateAll(ctx, item, ec)
	p.selfHeal(ctx, item, ec, outcome)
	p.persistGated(context.WithoutCancel(ctx), item, language, outcome)

	for _, section := range model.AllSections {
		if outcome.persisted[section] {
			resp.SectionsGenerated = append(resp.SectionsGenerated, section)
		}
	}
	for _, section := range model.AllSections {
		if outcome.failures[section] != nil && !outcome.persisted[section] && !outcome.withheld[section] {
			resp.Warnings = append(resp.Warnings,
				fmt.Sprintf("section %s failed: %s", section, fault.CategoryOf(outcome.failures[section])))
		}
	}

	// Finalize persistence runs detached from the run deadline: an expired
	// deadline degrades to a recorded partial result, never a lost one.
	fin := context.WithoutCancel(ctx)
	p.recordClaims(fin, item, outcome)
	p.recordProvenance(fin, item, language, outcome)
	p.finalizeSideWrites(ctx, item, ec, outcome)

	deadlineHit := ctx.Err() != nil
	status := model.StatusComplete
	if !outcome.allSettled(ctx) {
		status = model.StatusPartial
	}
	if err := p.store.SetAnalysisStatus(fin, item.ID, language, status); err != nil {
		return nil, err
	}

	resp.Success = len(resp.SectionsGenerated) > 0 || deadlineHit
	switch {
	case deadlineHit:
		resp.Message = messageFor(fault.Timeout, "")
	case status == model.StatusPartial:
		resp.Message = "analysis completed partially"
	}

	zap.L().Info("pipeline run finished",
		zap.String("content_id", item.ID),
		zap.String("language", language),
		zap.String("status", string(status)),
		zap.Int("sections", len(resp.SectionsGenerated)),
		zap.Int64("elapsed_ms", sw.ElapsedMillis()),
	)

	return resp, nil
}

// failAcquisition records a terminal acquisition failure and reports it as
// a recoverable response.
func (p *Pipeline) failAcquisition(ctx context.Context, item *model.ContentItem, language string, resp *model.ProcessResponse, err error) (*model.ProcessResponse, error) {
	classified := fault.Classify(err)

	zap.L().Warn("acquisition failed",
		zap.String("content_id", item.ID),
		zap.String("category", string(classified.Category)),
		zap.String("subtype", classified.Subtype),
		zap.Bool("retryable", classified.Retryable),
		zap.Error(err),
	)

	if !classified.Retryable {
		if markErr := p.store.MarkContentAcquisitionFailed(ctx, item.ID); markErr != nil {
			zap.L().Warn("acquisition failure sentinel not recorded",
				zap.String("content_id", item.ID), zap.Error(markErr))
		}
		item.MarkAcquisitionFailed()
	}

	if classified.UserHint != "" {
		resp.Message = classified.UserHint
	} else {
		resp.Message = messageFor(classified.Category, classified.Subtype)
	}
	return resp, nil
}

// moderationSampleLimit caps the text sent to the screening service.
const moderationSampleLimit = 8000

func moderationSample(text string) string {
	if len(text) > moderationSampleLimit {
		return text[:moderationSampleLimit]
	}
	return text
}

// runOutcome collects the settle-all generation results.
type runOutcome struct {
	mu        sync.Mutex
	results   map[model.SectionType]*generate.SectionResult
	failures  map[model.SectionType]error
	persisted map[model.SectionType]bool
	withheld  map[model.SectionType]bool
	triage    *model.TriageVerdict
}

func newRunOutcome() *runOutcome {
	return &runOutcome{
		results:   make(map[model.SectionType]*generate.SectionResult),
		failures:  make(map[model.SectionType]error),
		persisted: make(map[model.SectionType]bool),
		withheld:  make(map[model.SectionType]bool),
	}
}

// allSettled reports whether every section reached a final disposition
// (persisted or deliberately withheld) and the global deadline held.
func (o *runOutcome) allSettled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, section := range model.AllSections {
		if !o.persisted[section] && !o.withheld[section] {
			return false
		}
	}
	return true
}

// gatedSections are computed in the fan-out but persisted only after the
// triage verdict is known.
var gatedSections = map[model.SectionType]bool{
	model.SectionTruthCheck:  true,
	model.SectionActionItems: true,
}

// generateAll fans out all six sections concurrently. One section's
// failure never cancels the others; each ungated section is persisted the
// moment it finishes.
func (p *Pipeline) generateAll(ctx context.Context, item *model.ContentItem, ec *enrich.Context) *runOutcome {
	outcome := newRunOutcome()
	language := item.AnalysisLanguage

	// A section that finishes as the deadline expires is still persisted.
	fin := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, section := range model.AllSections {
		wg.Add(1)
		go func(section model.SectionType) {
			defer wg.Done()

			result, err := p.generator.Section(ctx, section, item, ec)

			outcome.mu.Lock()
			if err != nil {
				outcome.failures[section] = err
				outcome.mu.Unlock()
				return
			}
			outcome.results[section] = result
			if section == model.SectionTriage {
				if verdict, parseErr := generate.ParseTriage(result.Body); parseErr == nil {
					outcome.triage = verdict
				}
			}
			gated := gatedSections[section]
			outcome.mu.Unlock()

			if gated {
				return
			}
			if persistErr := p.persistSection(fin, item.ID, language, result); persistErr != nil {
				outcome.mu.Lock()
				outcome.failures[section] = persistErr
				outcome.mu.Unlock()
				return
			}
			outcome.mu.Lock()
			outcome.persisted[section] = true
			outcome.mu.Unlock()
		}(section)
	}
	wg.Wait()

	return outcome
}

// selfHeal retries the failed critical sections once, without search
// enrichment, persisting any recoveries.
func (p *Pipeline) selfHeal(ctx context.Context, item *model.ContentItem, ec *enrich.Context, outcome *runOutcome) {
	if ctx.Err() != nil {
		return
	}

	var retry []model.SectionType
	outcome.mu.Lock()
	for _, section := range model.CriticalSections {
		if outcome.failures[section] != nil && outcome.results[section] == nil {
			retry = append(retry, section)
		}
	}
	outcome.mu.Unlock()
	if len(retry) == 0 {
		return
	}

	// Search evidence is dropped here: the self-heal pass trades marginal
	// grounding for a better chance of finishing inside the deadline.
	healCtx := &enrich.Context{
		SearchURLs:  map[string]bool{},
		Tone:        ec.Tone,
		Credibility: ec.Credibility,
		Preferences: ec.Preferences,
	}

	attempts := p.cfg.SelfHealMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	fin := context.WithoutCancel(ctx)

	for _, section := range retry {
		for try := 1; try <= attempts; try++ {
			if ctx.Err() != nil {
				return
			}
			zap.L().Info("self-heal retry",
				zap.String("content_id", item.ID),
				zap.String("section", string(section)),
				zap.Int("attempt", try),
			)

			result, err := p.generator.Section(ctx, section, item, healCtx)
			if err != nil {
				zap.L().Warn("self-heal retry failed",
					zap.String("content_id", item.ID),
					zap.String("section", string(section)),
					zap.Error(err),
				)
				continue
			}
			if err := p.persistSection(fin, item.ID, item.AnalysisLanguage, result); err != nil {
				continue
			}

			outcome.mu.Lock()
			outcome.results[section] = result
			delete(outcome.failures, section)
			outcome.persisted[section] = true
			if section == model.SectionTriage {
				if verdict, parseErr := generate.ParseTriage(result.Body); parseErr == nil {
					outcome.triage = verdict
				}
			}
			outcome.mu.Unlock()
			break
		}
	}
}

// persistGated settles truth-check and action-items once the triage
// verdict is known. Music and entertainment content keeps its generated
// bodies out of the report.
func (p *Pipeline) persistGated(ctx context.Context, item *model.ContentItem, language string, outcome *runOutcome) {
	outcome.mu.Lock()
	skip := outcome.triage != nil && outcome.triage.SkipFactCheck()
	outcome.mu.Unlock()

	for section := range gatedSections {
		outcome.mu.Lock()
		result := outcome.results[section]
		outcome.mu.Unlock()
		if result == nil {
			continue
		}

		if skip {
			outcome.mu.Lock()
			outcome.withheld[section] = true
			outcome.mu.Unlock()
			zap.L().Info("section withheld for non-factual content",
				zap.String("content_id", item.ID),
				zap.String("section", string(section)),
			)
			continue
		}

		if err := p.persistSection(ctx, item.ID, language, result); err != nil {
			outcome.mu.Lock()
			outcome.failures[section] = err
			outcome.mu.Unlock()
			continue
		}
		outcome.mu.Lock()
		outcome.persisted[section] = true
		outcome.mu.Unlock()
	}
}

func (p *Pipeline) persistSection(ctx context.Context, contentID, language string, result *generate.SectionResult) error {
	return p.store.UpsertSection(ctx, contentID, language, model.Section{
		Type:  result.Section,
		Body:  string(result.Body),
		Model: result.Model,
	})
}

// recordClaims replaces the item's claim rows and accumulates the source
// domain's accuracy counters from a persisted truth-check.
func (p *Pipeline) recordClaims(ctx context.Context, item *model.ContentItem, outcome *runOutcome) {
	outcome.mu.Lock()
	result := outcome.results[model.SectionTruthCheck]
	persisted := outcome.persisted[model.SectionTruthCheck]
	quality := 0.0
	if outcome.triage != nil {
		quality = outcome.triage.QualityScore
	}
	outcome.mu.Unlock()
	if result == nil || !persisted {
		return
	}

	claims, delta, err := generate.ClaimsFromTruthCheck(result.Body, item, quality)
	if err != nil {
		zap.L().Warn("claims not extracted",
			zap.String("content_id", item.ID), zap.Error(err))
		return
	}

	if err := p.store.ReplaceClaims(ctx, item.ID, claims); err != nil {
		zap.L().Warn("claims not persisted",
			zap.String("content_id", item.ID), zap.Error(err))
		return
	}

	if delta.Domain != "" {
		if err := p.store.AccumulateDomainStat(ctx, delta); err != nil {
			zap.L().Warn("domain stats not accumulated",
				zap.String("domain", delta.Domain), zap.Error(err))
		}
	}
}

// recordProvenance accumulates model id and token usage onto the analysis.
func (p *Pipeline) recordProvenance(ctx context.Context, item *model.ContentItem, language string, outcome *runOutcome) {
	var prov model.Provenance
	outcome.mu.Lock()
	for _, result := range outcome.results {
		prov.Add(model.Provenance{
			Model:        result.Model,
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		})
	}
	outcome.mu.Unlock()

	if prov.InputTokens == 0 && prov.OutputTokens == 0 {
		return
	}
	if err := p.store.AddAnalysisProvenance(ctx, item.ID, language, prov); err != nil {
		zap.L().Warn("provenance not recorded",
			zap.String("content_id", item.ID), zap.Error(err))
	}
}

// finalizeSideWrites applies tag and tone side effects from the tags
// section. These are fire-and-forget: a failure is logged and never blocks
// the response.
func (p *Pipeline) finalizeSideWrites(ctx context.Context, item *model.ContentItem, ec *enrich.Context, outcome *runOutcome) {
	outcome.mu.Lock()
	tagsResult := outcome.results[model.SectionTags]
	outcome.mu.Unlock()

	tone := ec.Tone
	var tags []string
	if tagsResult != nil {
		if parsedTags, parsedTone, err := generate.ParseTags(tagsResult.Body); err == nil {
			tags = parsedTags
			if tone == "" {
				tone = parsedTone
			}
		}
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if len(tags) > 0 {
			if err := p.store.SetContentTags(bg, item.ID, tags); err != nil {
				zap.L().Warn("tags not saved",
					zap.String("content_id", item.ID), zap.Error(err))
			}
		}
		if tone != "" {
			if err := p.store.SetContentTone(bg, item.ID, tone); err != nil {
				zap.L().Warn("tone not saved",
					zap.String("content_id", item.ID), zap.Error(err))
			}
		}
	}()
}

// messageFor maps a fault category onto the user-facing message. Raw
// vendor text never appears here.
func messageFor(cat fault.Category, detail string) string {
	switch cat {
	case fault.AcquisitionFailed:
		return "The content's text could not be retrieved."
	case fault.TranscriptionFailed:
		return "The audio could not be transcribed."
	case fault.ContentPolicyViolation:
		return "This content cannot be analyzed due to content policy."
	case fault.MusicOrNonspeech:
		return "No speech was detected; music and non-speech audio cannot be analyzed."
	case fault.RateLimited:
		return "The service is busy. Please try again shortly."
	case fault.Timeout:
		return "Processing took too long and was stopped. Partial results may be available."
	case fault.ContentUnavailable:
		return "The content is no longer available at its source."
	case fault.AIAnalysisFailed:
		return "Analysis is temporarily unavailable. Please try again later."
	default:
		return "Processing failed unexpectedly."
	}
}
