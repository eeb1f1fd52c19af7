package model

import (
	"fmt"
	"time"
)

// UsageFeature names a billable feature gated by monthly quota.
type UsageFeature string

const (
	FeatureAnalysis      UsageFeature = "analysis"
	FeatureTranscription UsageFeature = "transcription"
)

// UsagePeriodCounter tracks per-owner, per-calendar-period feature use.
// Incremented atomically and only once per successful billable action.
type UsagePeriodCounter struct {
	OwnerID   string       `json:"owner_id"`
	Feature   UsageFeature `json:"feature"`
	Period    string       `json:"period"` // e.g. "2026-08"
	Used      int          `json:"used"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PeriodKey returns the calendar-month key for t in UTC.
func PeriodKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}
