// Package usage enforces fair-use accounting: monthly per-owner feature
// quotas backed by the store, and a per-identifier fixed-window request
// limiter backed by Redis with an in-memory fallback.
package usage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lensview/insight/internal/config"
	"github.com/lensview/insight/internal/model"
	"github.com/lensview/insight/internal/store"
)

// Decision is the outcome of a quota reservation.
type Decision struct {
	Allowed bool
	Used    int
	Limit   int
}

// Quota gates billable actions against the monthly per-owner limit.
type Quota struct {
	cfg   config.UsageConfig
	store store.Store
	now   func() time.Time
}

// NewQuota creates the quota gate.
func NewQuota(cfg config.UsageConfig, st store.Store) *Quota {
	return &Quota{cfg: cfg, store: st, now: time.Now}
}

// WithClock overrides the time source (for period-rollover tests).
func (q *Quota) WithClock(now func() time.Time) *Quota {
	q.now = now
	return q
}

// Reserve atomically consumes one unit of the owner's monthly allowance.
// Accounting errors fail open: the action proceeds and the miss is logged,
// because losing one count is cheaper than refusing a paying user.
func (q *Quota) Reserve(ctx context.Context, ownerID string, feature model.UsageFeature) *Decision {
	limit := q.cfg.MonthlyAnalysisLimit
	if limit <= 0 {
		return &Decision{Allowed: true, Limit: 0}
	}

	period := model.PeriodKey(q.now())
	allowed, used, err := q.store.IncrementUsageWithCeiling(ctx, ownerID, feature, period, limit)
	if err != nil {
		zap.L().Error("quota accounting unavailable, failing open",
			zap.String("owner_id", ownerID),
			zap.String("feature", string(feature)),
			zap.Error(err),
		)
		return &Decision{Allowed: true, Limit: limit}
	}

	return &Decision{Allowed: allowed, Used: used, Limit: limit}
}

// Release hands one reserved unit back after a run that ended without a
// billable result. A failed release is logged and absorbed; the owner loses
// at most one unit, never the run.
func (q *Quota) Release(ctx context.Context, ownerID string, feature model.UsageFeature) {
	if q.cfg.MonthlyAnalysisLimit <= 0 {
		return
	}
	period := model.PeriodKey(q.now())
	if err := q.store.DecrementUsage(ctx, ownerID, feature, period); err != nil {
		zap.L().Warn("quota release failed",
			zap.String("owner_id", ownerID),
			zap.String("feature", string(feature)),
			zap.Error(err),
		)
	}
}

// Remaining reports the owner's unused allowance for the current period.
func (q *Quota) Remaining(ctx context.Context, ownerID string, feature model.UsageFeature) (int, error) {
	limit := q.cfg.MonthlyAnalysisLimit
	used, err := q.store.GetUsage(ctx, ownerID, feature, model.PeriodKey(q.now()))
	if err != nil {
		return 0, err
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
