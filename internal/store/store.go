// Package store defines persistence for content items, analyses, claims,
// domain statistics and usage counters, with Postgres and SQLite backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lensview/insight/internal/model"
)

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// CandidateFilter selects prior content rows for cross-tenant reuse.
type CandidateFilter struct {
	NormalizedURL string
	Type          model.ContentType
	ExcludeOwner  string
	// NewerThan excludes rows acquired at or before this instant
	// (strict inequality).
	NewerThan time.Time
	Limit     int
}

// Store is the persistence interface for the content pipeline. Section
// writes are idempotent upserts keyed by (content, language, section); no
// multi-row transactions are required because each write is independent
// and forward-only.
type Store interface {
	// Content items
	CreateContentItem(ctx context.Context, item *model.ContentItem) error
	GetContentItem(ctx context.Context, id string) (*model.ContentItem, error)
	UpdateContentAcquisition(ctx context.Context, id, title, text string, metadata map[string]string) error
	MarkContentAcquisitionFailed(ctx context.Context, id string) error
	SetContentTags(ctx context.Context, id string, tags []string) error
	SetContentTone(ctx context.Context, id, tone string) error
	IncrementRegeneration(ctx context.Context, id string) error

	// Analysis results. EnsureAnalysis creates the pending row for a
	// (content, language) pair; ResetAnalysis clears it for forced
	// regeneration.
	EnsureAnalysis(ctx context.Context, contentID, language string) error
	GetAnalysis(ctx context.Context, contentID, language string) (*model.AnalysisResult, error)
	UpsertSection(ctx context.Context, contentID, language string, section model.Section) error
	SetAnalysisStatus(ctx context.Context, contentID, language string, status model.ProcessingStatus) error
	AddAnalysisProvenance(ctx context.Context, contentID, language string, prov model.Provenance) error
	ResetAnalysis(ctx context.Context, contentID, language string) error

	// Claims are fully replaced per content item, never partially updated.
	ReplaceClaims(ctx context.Context, contentID string, claims []model.Claim) error
	ListClaims(ctx context.Context, contentID string) ([]model.Claim, error)

	// Domain statistics accumulate monotonically.
	AccumulateDomainStat(ctx context.Context, delta model.DomainStatDelta) error
	GetDomainStat(ctx context.Context, domain string) (*model.DomainStat, error)

	// IncrementUsageWithCeiling atomically increments the (owner, feature,
	// period) counter if it is under limit, reporting whether the action
	// is allowed and the resulting count. DecrementUsage releases one
	// reserved unit, flooring at zero.
	IncrementUsageWithCeiling(ctx context.Context, ownerID string, feature model.UsageFeature, period string, limit int) (bool, int, error)
	DecrementUsage(ctx context.Context, ownerID string, feature model.UsageFeature, period string) error
	GetUsage(ctx context.Context, ownerID string, feature model.UsageFeature, period string) (int, error)

	// Owner preferences feed the analysis prompts; a missing row reads as
	// an empty string.
	GetOwnerPreferences(ctx context.Context, ownerID string) (string, error)
	SetOwnerPreferences(ctx context.Context, ownerID, preferences string) error

	// Cross-tenant cache support.
	FindCacheCandidates(ctx context.Context, filter CandidateFilter) ([]model.ContentItem, error)
	CloneAnalysis(ctx context.Context, fromContentID, toContentID, language, newOwnerID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
