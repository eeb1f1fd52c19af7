package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lensview/insight/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "insight_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestItem(owner, url string) *model.ContentItem {
	return &model.ContentItem{
		ID:               uuid.New().String(),
		URL:              url,
		Type:             model.TypeArticle,
		OwnerID:          owner,
		AnalysisLanguage: "en",
	}
}

func TestContentItemRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := newTestItem("owner-1", "https://example.com/story")
	item.Title = "Story"
	item.RawText = "body text"
	item.StructuredMetadata = map[string]string{"channel": "news24"}
	item.Tags = []string{"transit", "policy"}

	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetContentItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Story" || got.RawText != "body text" {
		t.Errorf("got %+v", got)
	}
	if got.StructuredMetadata["channel"] != "news24" {
		t.Errorf("metadata lost: %v", got.StructuredMetadata)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags lost: %v", got.Tags)
	}
}

func TestGetContentItem_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetContentItem(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMarkContentAcquisitionFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := newTestItem("owner-1", "https://example.com/broken")
	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkContentAcquisitionFailed(ctx, item.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetContentItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasUsableText() {
		t.Errorf("sentinel must not count as usable text: %q", got.RawText)
	}
}

func TestUpsertSection_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := newTestItem("owner-1", "https://example.com/a")
	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureAnalysis(ctx, item.ID, "en"); err != nil {
		t.Fatal(err)
	}

	first := model.Section{Type: model.SectionOverview, Body: `{"summary":"v1"}`, Model: "m1"}
	second := model.Section{Type: model.SectionOverview, Body: `{"summary":"v2"}`, Model: "m2"}
	if err := s.UpsertSection(ctx, item.ID, "en", first); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertSection(ctx, item.ID, "en", second); err != nil {
		t.Fatal(err)
	}

	result, err := s.GetAnalysis(ctx, item.ID, "en")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Sections) != 1 {
		t.Fatalf("rewrite must not duplicate rows, got %d sections", len(result.Sections))
	}
	sec := result.Sections[model.SectionOverview]
	if string(sec.Body) != `{"summary":"v2"}` || sec.Model != "m2" {
		t.Errorf("last write must win: %+v", sec)
	}
}

func TestEnsureAnalysis_PreservesExistingRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := newTestItem("owner-1", "https://example.com/a")
	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureAnalysis(ctx, item.ID, "en"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnalysisStatus(ctx, item.ID, "en", model.StatusPartial); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureAnalysis(ctx, item.ID, "en"); err != nil {
		t.Fatal(err)
	}

	result, err := s.GetAnalysis(ctx, item.ID, "en")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != model.StatusPartial {
		t.Errorf("re-ensure must not reset status, got %s", result.Status)
	}
}

func TestResetAnalysis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := newTestItem("owner-1", "https://example.com/a")
	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureAnalysis(ctx, item.ID, "en"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertSection(ctx, item.ID, "en", model.Section{
		Type: model.SectionTags, Body: `{}`,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddAnalysisProvenance(ctx, item.ID, "en", model.Provenance{Model: "m", InputTokens: 10, OutputTokens: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnalysisStatus(ctx, item.ID, "en", model.StatusComplete); err != nil {
		t.Fatal(err)
	}

	if err := s.ResetAnalysis(ctx, item.ID, "en"); err != nil {
		t.Fatal(err)
	}

	result, err := s.GetAnalysis(ctx, item.ID, "en")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != model.StatusPending {
		t.Errorf("status %s", result.Status)
	}
	if len(result.Sections) != 0 {
		t.Errorf("sections survived reset: %v", result.Sections)
	}
	if result.Provenance.InputTokens != 0 {
		t.Errorf("provenance survived reset: %+v", result.Provenance)
	}
}

func TestAddAnalysisProvenance_Accumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := newTestItem("owner-1", "https://example.com/a")
	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureAnalysis(ctx, item.ID, "en"); err != nil {
		t.Fatal(err)
	}

	if err := s.AddAnalysisProvenance(ctx, item.ID, "en", model.Provenance{Model: "m1", InputTokens: 100, OutputTokens: 40}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddAnalysisProvenance(ctx, item.ID, "en", model.Provenance{InputTokens: 50, OutputTokens: 10}); err != nil {
		t.Fatal(err)
	}

	result, err := s.GetAnalysis(ctx, item.ID, "en")
	if err != nil {
		t.Fatal(err)
	}
	if result.Provenance.InputTokens != 150 || result.Provenance.OutputTokens != 50 {
		t.Errorf("got %+v", result.Provenance)
	}
	if result.Provenance.Model != "m1" {
		t.Errorf("empty model must not clobber, got %q", result.Provenance.Model)
	}
}

func TestIncrementUsageWithCeiling(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		allowed, used, err := s.IncrementUsageWithCeiling(ctx, "owner-1", model.FeatureAnalysis, "2026-08", 3)
		if err != nil {
			t.Fatal(err)
		}
		if !allowed || used != want {
			t.Fatalf("increment %d: allowed=%v used=%d", want, allowed, used)
		}
	}

	allowed, used, err := s.IncrementUsageWithCeiling(ctx, "owner-1", model.FeatureAnalysis, "2026-08", 3)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("fourth increment must be denied")
	}
	if used != 3 {
		t.Errorf("denied response reports current usage, got %d", used)
	}

	// A new period starts fresh.
	allowed, used, err = s.IncrementUsageWithCeiling(ctx, "owner-1", model.FeatureAnalysis, "2026-09", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed || used != 1 {
		t.Errorf("new period: allowed=%v used=%d", allowed, used)
	}
}

func TestDecrementUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.IncrementUsageWithCeiling(ctx, "owner-1", model.FeatureAnalysis, "2026-08", 3); err != nil {
		t.Fatal(err)
	}
	if err := s.DecrementUsage(ctx, "owner-1", model.FeatureAnalysis, "2026-08"); err != nil {
		t.Fatal(err)
	}

	used, err := s.GetUsage(ctx, "owner-1", model.FeatureAnalysis, "2026-08")
	if err != nil {
		t.Fatal(err)
	}
	if used != 0 {
		t.Errorf("used %d, want 0", used)
	}

	// Floors at zero, even repeated and on missing rows.
	if err := s.DecrementUsage(ctx, "owner-1", model.FeatureAnalysis, "2026-08"); err != nil {
		t.Fatal(err)
	}
	if err := s.DecrementUsage(ctx, "owner-2", model.FeatureAnalysis, "2026-08"); err != nil {
		t.Fatal(err)
	}
	used, err = s.GetUsage(ctx, "owner-1", model.FeatureAnalysis, "2026-08")
	if err != nil {
		t.Fatal(err)
	}
	if used != 0 {
		t.Errorf("used went negative: %d", used)
	}
}

func TestOwnerPreferencesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prefs, err := s.GetOwnerPreferences(ctx, "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs != "" {
		t.Errorf("missing row must read as empty, got %q", prefs)
	}

	if err := s.SetOwnerPreferences(ctx, "owner-1", "focus on financial impact"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetOwnerPreferences(ctx, "owner-1", "keep it brief"); err != nil {
		t.Fatal(err)
	}

	prefs, err = s.GetOwnerPreferences(ctx, "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs != "keep it brief" {
		t.Errorf("last write must win, got %q", prefs)
	}
}

func TestFindCacheCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "https://example.com/shared"

	fresh := newTestItem("other-owner", url)
	fresh.RawText = "usable text"
	if err := s.CreateContentItem(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	failed := newTestItem("other-owner", url)
	if err := s.CreateContentItem(ctx, failed); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkContentAcquisitionFailed(ctx, failed.ID); err != nil {
		t.Fatal(err)
	}

	mine := newTestItem("me", url)
	mine.RawText = "my own copy"
	if err := s.CreateContentItem(ctx, mine); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindCacheCandidates(ctx, CandidateFilter{
		NormalizedURL: url,
		Type:          model.TypeArticle,
		ExcludeOwner:  "me",
		NewerThan:     time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want only the fresh foreign row, got %d", len(got))
	}
	if got[0].ID != fresh.ID {
		t.Errorf("got %s", got[0].ID)
	}

	// The staleness boundary is strict: rows at or before NewerThan miss.
	got, err = s.FindCacheCandidates(ctx, CandidateFilter{
		NormalizedURL: url,
		Type:          model.TypeArticle,
		ExcludeOwner:  "me",
		NewerThan:     time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("future cutoff must match nothing, got %d", len(got))
	}
}

func TestFindCacheCandidates_CutoffBoundaryExcluded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	url := "https://example.com/boundary"

	item := newTestItem("other-owner", url)
	item.RawText = "usable text"
	if err := s.CreateContentItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetContentItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}

	filter := CandidateFilter{
		NormalizedURL: url,
		Type:          model.TypeArticle,
		ExcludeOwner:  "me",
		NewerThan:     got.UpdatedAt,
	}
	rows, err := s.FindCacheCandidates(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("row exactly at the cutoff must miss, got %d", len(rows))
	}

	filter.NewerThan = got.UpdatedAt.Add(-time.Millisecond)
	rows, err = s.FindCacheCandidates(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("row just inside the cutoff must match, got %d", len(rows))
	}
}

func TestCloneAnalysis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := newTestItem("owner-src", "https://example.com/x")
	src.RawText = "text"
	dst := newTestItem("owner-dst", "https://example.com/x")
	for _, item := range []*model.ContentItem{src, dst} {
		if err := s.CreateContentItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.EnsureAnalysis(ctx, src.ID, "en"); err != nil {
		t.Fatal(err)
	}
	for _, sec := range []model.SectionType{model.SectionOverview, model.SectionTags} {
		if err := s.UpsertSection(ctx, src.ID, "en", model.Section{
			Type: sec, Body: `{"v":1}`, Model: "m",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.ReplaceClaims(ctx, src.ID, []model.Claim{{
		ID: uuid.New().String(), ContentID: src.ID, OwnerID: "owner-src",
		Text: "claim", NormalizedText: "claim", Status: model.ClaimVerified,
		CreatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatal(err)
	}

	// Cloning an incomplete analysis must fail.
	if err := s.CloneAnalysis(ctx, src.ID, dst.ID, "en", "owner-dst"); err == nil {
		t.Fatal("incomplete source must not clone")
	}

	if err := s.SetAnalysisStatus(ctx, src.ID, "en", model.StatusComplete); err != nil {
		t.Fatal(err)
	}
	if err := s.CloneAnalysis(ctx, src.ID, dst.ID, "en", "owner-dst"); err != nil {
		t.Fatal(err)
	}

	result, err := s.GetAnalysis(ctx, dst.ID, "en")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != model.StatusComplete {
		t.Errorf("status %s", result.Status)
	}
	if len(result.Sections) != 2 {
		t.Errorf("sections %v", result.Sections)
	}

	claims, err := s.ListClaims(ctx, dst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].OwnerID != "owner-dst" {
		t.Errorf("claims must be re-keyed to the new owner: %+v", claims)
	}
}

func TestReplaceClaims_FullReplacement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	contentID := uuid.New().String()

	mkClaim := func(text string) model.Claim {
		return model.Claim{
			ID: uuid.New().String(), ContentID: contentID, OwnerID: "o",
			Text: text, NormalizedText: model.NormalizeClaim(text),
			Status: model.ClaimUnverified, CreatedAt: time.Now().UTC(),
		}
	}

	if err := s.ReplaceClaims(ctx, contentID, []model.Claim{mkClaim("a"), mkClaim("b")}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceClaims(ctx, contentID, []model.Claim{mkClaim("c")}); err != nil {
		t.Fatal(err)
	}

	claims, err := s.ListClaims(ctx, contentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 1 || claims[0].Text != "c" {
		t.Errorf("old claims must be gone: %+v", claims)
	}
}

func TestAccumulateDomainStat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, delta := range []model.DomainStatDelta{
		{Domain: "news.example.com", Verified: 2, False: 1, QualityScore: 0.8},
		{Domain: "news.example.com", Verified: 1, Disputed: 1, QualityScore: 0.6},
	} {
		if err := s.AccumulateDomainStat(ctx, delta); err != nil {
			t.Fatal(err)
		}
	}

	stat, err := s.GetDomainStat(ctx, "news.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if stat.VerifiedCount != 3 || stat.DisputedCount != 1 || stat.FalseCount != 1 {
		t.Errorf("counts %+v", stat)
	}
	if stat.AnalysisCount != 2 {
		t.Errorf("analysis count %d", stat.AnalysisCount)
	}
	if stat.QualityScoreSum != 1.4 {
		t.Errorf("quality sum %v", stat.QualityScoreSum)
	}
}
