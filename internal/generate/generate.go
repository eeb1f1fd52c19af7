// Package generate produces the report sections by rendering section
// prompts and calling the completion service with status-class-aware
// retries. Raw vendor failure text never leaves this package; exhausted
// sections surface as classified faults with generic messages.
package generate

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lensview/insight/internal/config"
	"github.com/lensview/insight/internal/enrich"
	"github.com/lensview/insight/internal/fault"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/prompts"
	"github.com/lensview/insight/internal/resilience"
	"github.com/lensview/insight/pkg/llm"
)

// SectionResult is one successfully generated section body with its cost.
type SectionResult struct {
	Section model.SectionType
	Body    json.RawMessage
	Model   string
	Usage   llm.TokenUsage
}

// Generator renders prompts and runs section completions.
type Generator struct {
	registry *prompts.Registry
	llm      llm.Client
	llmCfg   config.LLMConfig
	pipeCfg  config.PipelineConfig
}

// New creates a Generator.
func New(registry *prompts.Registry, client llm.Client, llmCfg config.LLMConfig, pipeCfg config.PipelineConfig) *Generator {
	return &Generator{
		registry: registry,
		llm:      client,
		llmCfg:   llmCfg,
		pipeCfg:  pipeCfg,
	}
}

// modelFor picks the completion model for a section. Triage runs on the
// cheaper classification model.
func (g *Generator) modelFor(section model.SectionType) string {
	if section == model.SectionTriage && g.llmCfg.TriageModel != "" {
		return g.llmCfg.TriageModel
	}
	return g.llmCfg.Model
}

// Section generates one report section. The returned error, if any, is
// already classified into the fault taxonomy.
func (g *Generator) Section(ctx context.Context, section model.SectionType, item *model.ContentItem, ec *enrich.Context) (*SectionResult, error) {
	def, err := g.registry.Get(section)
	if err != nil {
		return nil, fault.New(fault.AIAnalysisFailed, err).WithSubtype("prompt_missing")
	}

	vars := prompts.Vars{
		Language:       item.AnalysisLanguage,
		Tone:           ec.Tone,
		Preferences:    ec.Preferences,
		Guidance:       ec.Guidance(),
		Metadata:       item.StructuredMetadata,
		SourceText:     item.RawText,
		MaxSourceChars: g.pipeCfg.MaxSourceTextChars,
	}

	maxTokens := def.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.llmCfg.MaxTokens
	}

	policy := resilience.DefaultPolicy()
	if g.pipeCfg.SectionMaxAttempts > 0 {
		policy.MaxAttempts = g.pipeCfg.SectionMaxAttempts
	}
	policy.OnRetry = resilience.Logger("llm", "generate "+string(section))

	sw := fault.StartStopwatch()
	type attempt struct {
		body  json.RawMessage
		model string
		usage llm.TokenUsage
	}
	temperature := g.llmCfg.Temperature

	res, err := resilience.Do(ctx, policy, func(ctx context.Context) (attempt, error) {
		resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
			Model:       g.modelFor(section),
			System:      prompts.Render(def.System, vars),
			Prompt:      prompts.Render(def.Template, vars),
			JSONMode:    true,
			Temperature: &temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return attempt{}, err
		}

		body, err := decodeJSONObject(resp.Text)
		if err != nil {
			// Malformed output retries under the standard budget.
			return attempt{}, resilience.NewMalformedResponseError(err)
		}

		return attempt{body: body, model: resp.Model, usage: resp.Usage}, nil
	})
	if err != nil {
		zap.L().Warn("section generation failed",
			zap.String("content_id", item.ID),
			zap.String("section", string(section)),
			zap.Int64("elapsed_ms", sw.ElapsedMillis()),
			zap.Error(err),
		)
		return nil, classifyGenerationError(err)
	}

	body := res.body
	if section == model.SectionTruthCheck {
		gated, gateErr := GateCitations(body, ec.SearchURLs)
		if gateErr != nil {
			return nil, fault.New(fault.AIAnalysisFailed, gateErr).WithSubtype("citation_gate")
		}
		body = gated
	}

	zap.L().Info("section generated",
		zap.String("content_id", item.ID),
		zap.String("section", string(section)),
		zap.Int64("elapsed_ms", sw.ElapsedMillis()),
		zap.Int64("output_tokens", res.usage.OutputTokens),
	)

	return &SectionResult{
		Section: section,
		Body:    body,
		Model:   res.model,
		Usage:   res.usage,
	}, nil
}

// genericFailureHint is what users see when a section exhausts its
// attempts. Vendor error text never appears in it.
const genericFailureHint = "Analysis is temporarily unavailable for this section. Please try again later."

// classifyGenerationError maps a terminal generation error into the fault
// taxonomy with a safe user hint.
func classifyGenerationError(err error) error {
	switch {
	case resilience.StatusCodeOf(err) == http.StatusTooManyRequests:
		return fault.NewRetryable(fault.RateLimited, err).WithHint(genericFailureHint)
	case ctxDeadline(err):
		return fault.NewRetryable(fault.Timeout, err).WithHint(genericFailureHint)
	default:
		return fault.New(fault.AIAnalysisFailed, err).WithHint(genericFailureHint)
	}
}

func ctxDeadline(err error) bool {
	return fault.CategoryOf(err) == fault.Timeout
}
