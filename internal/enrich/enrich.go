// Package enrich gathers optional pre-generation context for a content
// item: web-search evidence, candidate claims, tone, source credibility.
// Every signal is independently optional; a missed signal degrades to a
// neutral default and a warning, never a pipeline failure.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lensview/insight/internal/config"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/store"
	"github.com/lensview/insight/pkg/llm"
	"github.com/lensview/insight/pkg/websearch"
)

// Context is the enrichment output fed into section prompts. Zero values
// are valid neutral defaults throughout.
type Context struct {
	SearchAnswer  string
	SearchResults []websearch.Result
	// SearchURLs is the citation allow-set: only these URLs may appear as
	// truth-check references.
	SearchURLs    map[string]bool
	ClaimGuidance string
	Tone          string
	Credibility   string
	Preferences   string
	Warnings      []string
}

// Guidance renders the context block substituted into section prompts.
func (c *Context) Guidance() string {
	var b strings.Builder
	if c.SearchAnswer != "" {
		b.WriteString("Web search summary:\n")
		b.WriteString(c.SearchAnswer)
		b.WriteString("\n\n")
	}
	if len(c.SearchResults) > 0 {
		b.WriteString("Search evidence:\n")
		for _, r := range c.SearchResults {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		}
		b.WriteString("\n")
	}
	if c.ClaimGuidance != "" {
		b.WriteString("Candidate claims:\n")
		b.WriteString(c.ClaimGuidance)
		b.WriteString("\n\n")
	}
	if c.Credibility != "" {
		b.WriteString("Source credibility: ")
		b.WriteString(c.Credibility)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// Enricher runs the enrichment fan-out.
type Enricher struct {
	cfg      config.PipelineConfig
	search   websearch.Client
	llm      llm.Client
	llmModel string
	store    store.Store
}

// New creates an Enricher. The search client may be nil, in which case all
// search-derived signals stay at their neutral defaults.
func New(cfg config.PipelineConfig, search websearch.Client, llmClient llm.Client, llmModel string, st store.Store) *Enricher {
	return &Enricher{
		cfg:      cfg,
		search:   search,
		llm:      llmClient,
		llmModel: llmModel,
		store:    st,
	}
}

// Options tunes one enrichment run.
type Options struct {
	// SkipSearch disables web-search-derived signals (used by text-only
	// cache hits and self-heal retries, where latency matters more than
	// marginal evidence).
	SkipSearch  bool
	Preferences string
}

// Run gathers enrichment signals concurrently under the enrichment
// deadline. It always returns a usable Context.
func (e *Enricher) Run(ctx context.Context, item *model.ContentItem, opts Options) *Context {
	deadline := time.Duration(e.cfg.EnrichDeadlineSecs) * time.Second
	if deadline <= 0 {
		deadline = 40 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	out := &Context{
		SearchURLs: make(map[string]bool),
	}

	var mu sync.Mutex
	warn := func(msg string) {
		mu.Lock()
		out.Warnings = append(out.Warnings, msg)
		mu.Unlock()
	}

	var cache *searchCache
	if e.search != nil && !opts.SkipSearch {
		cache = newSearchCache(e.search)
	}

	var wg sync.WaitGroup

	if cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := cache.Search(ctx, topicQuery(item))
			if err != nil {
				zap.L().Warn("enrichment search failed",
					zap.String("content_id", item.ID), zap.Error(err))
				warn("web search context unavailable")
				return
			}
			mu.Lock()
			out.SearchAnswer = resp.Answer
			out.SearchResults = append(out.SearchResults, resp.Results...)
			for _, r := range resp.Results {
				out.SearchURLs[r.URL] = true
			}
			mu.Unlock()
		}()
	}

	if e.llm != nil {
		if len(item.RawText) >= e.cfg.MinClaimTextLength {
			wg.Add(1)
			go func() {
				defer wg.Done()
				guidance, urls, err := e.extractClaims(ctx, item, cache)
				if err != nil {
					zap.L().Warn("claim extraction failed",
						zap.String("content_id", item.ID), zap.Error(err))
					warn("claim verification unavailable")
					return
				}
				mu.Lock()
				out.ClaimGuidance = guidance
				for u := range urls {
					out.SearchURLs[u] = true
				}
				mu.Unlock()
			}()
		} else {
			warn("claim verification skipped: text below minimum length")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			tone, err := e.detectTone(ctx, item)
			if err != nil {
				zap.L().Warn("tone detection failed",
					zap.String("content_id", item.ID), zap.Error(err))
				return
			}
			mu.Lock()
			out.Tone = tone
			mu.Unlock()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		cred := e.domainCredibility(ctx, item)
		mu.Lock()
		out.Credibility = cred
		mu.Unlock()
	}()

	// Explicit request preferences win; otherwise the owner's stored
	// preferences are looked up alongside the other signals.
	if opts.Preferences != "" {
		out.Preferences = opts.Preferences
	} else if e.store != nil && item.OwnerID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prefs, err := e.store.GetOwnerPreferences(ctx, item.OwnerID)
			if err != nil {
				zap.L().Warn("owner preferences lookup failed",
					zap.String("owner_id", item.OwnerID), zap.Error(err))
				return
			}
			mu.Lock()
			out.Preferences = prefs
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		warn("enrichment deadline reached; partial context used")
		<-done
	}

	return out
}

// topicQuery builds the general context search query for an item.
func topicQuery(item *model.ContentItem) string {
	subject := item.Title
	if subject == "" {
		subject = item.Domain()
	}
	if subject == "" {
		head := item.RawText
		if len(head) > 120 {
			head = head[:120]
		}
		subject = head
	}
	return "Background, context and recent developments regarding: " + subject
}

// claimExtraction is the JSON shape the extraction prompt requests.
type claimExtraction struct {
	Claims []string `json:"claims"`
}

// maxVerifiedClaims bounds per-run verification searches.
const maxVerifiedClaims = 3

// extractClaims asks the model for the most consequential factual claims
// and gathers search evidence for each.
func (e *Enricher) extractClaims(ctx context.Context, item *model.ContentItem, cache *searchCache) (string, map[string]bool, error) {
	text := item.RawText
	if e.cfg.MaxSourceTextChars > 0 && len(text) > e.cfg.MaxSourceTextChars {
		text = text[:e.cfg.MaxSourceTextChars]
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Model:    e.llmModel,
		System:   "You extract the most consequential verifiable factual claims from content. Return valid JSON only.",
		Prompt:   fmt.Sprintf("Content:\n%s\n\nList up to %d checkable factual claims. Return JSON: {\"claims\": [\"<claim>\"]}", text, maxVerifiedClaims),
		JSONMode: true,
	})
	if err != nil {
		return "", nil, err
	}

	var extracted claimExtraction
	if err := json.Unmarshal([]byte(resp.Text), &extracted); err != nil {
		return "", nil, err
	}

	urls := make(map[string]bool)
	var b strings.Builder
	for i, claim := range extracted.Claims {
		if i >= maxVerifiedClaims {
			break
		}
		fmt.Fprintf(&b, "- %s\n", claim)
		if cache == nil {
			continue
		}
		evidence, err := cache.Search(ctx, "Is this claim accurate? "+claim)
		if err != nil {
			continue
		}
		if evidence.Answer != "" {
			fmt.Fprintf(&b, "  evidence: %s\n", firstLine(evidence.Answer))
		}
		for _, r := range evidence.Results {
			urls[r.URL] = true
			fmt.Fprintf(&b, "  source: %s (%s)\n", r.Title, r.URL)
		}
	}

	return strings.TrimSpace(b.String()), urls, nil
}

// detectTone classifies the writing tone in one word.
func (e *Enricher) detectTone(ctx context.Context, item *model.ContentItem) (string, error) {
	sample := item.RawText
	if len(sample) > 2000 {
		sample = sample[:2000]
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Model:     e.llmModel,
		System:    "You classify the tone of content in exactly one lowercase word (e.g. neutral, urgent, promotional, conversational, academic).",
		Prompt:    "Classify the tone of this content, one word only:\n\n" + sample,
		MaxTokens: 16,
	})
	if err != nil {
		return "", err
	}

	tone := strings.ToLower(strings.TrimSpace(firstLine(resp.Text)))
	if tone == "" || len(tone) > 32 {
		return "neutral", nil
	}
	return tone, nil
}

// domainCredibility summarizes accumulated accuracy history for the item's
// source domain, or "" when there is none.
func (e *Enricher) domainCredibility(ctx context.Context, item *model.ContentItem) string {
	domain := item.Domain()
	if domain == "" || e.store == nil {
		return ""
	}

	stat, err := e.store.GetDomainStat(ctx, domain)
	if err != nil {
		return ""
	}

	ratio := stat.AccuracyRatio()
	if ratio < 0 {
		return fmt.Sprintf("%s has %d prior analyses with no rated claims yet.", domain, stat.AnalysisCount)
	}
	return fmt.Sprintf("%s: %.0f%% of %d previously checked claims were verified (avg quality %.2f over %d analyses).",
		domain, ratio*100, stat.TotalClaims(), stat.AverageQuality(), stat.AnalysisCount)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
