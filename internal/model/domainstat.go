package model

import "time"

// DomainStat aggregates accuracy and quality observations per source
// domain. Counters accumulate monotonically and are never rolled back.
type DomainStat struct {
	Domain          string    `json:"domain"`
	VerifiedCount   int64     `json:"verified_count"`
	DisputedCount   int64     `json:"disputed_count"`
	UnverifiedCount int64     `json:"unverified_count"`
	FalseCount      int64     `json:"false_count"`
	AnalysisCount   int64     `json:"analysis_count"`
	QualityScoreSum float64   `json:"quality_score_sum"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AverageQuality returns the running quality-score average, or 0 when no
// analyses have been recorded.
func (d *DomainStat) AverageQuality() float64 {
	if d.AnalysisCount == 0 {
		return 0
	}
	return d.QualityScoreSum / float64(d.AnalysisCount)
}

// TotalClaims returns the size of the accuracy-rating histogram.
func (d *DomainStat) TotalClaims() int64 {
	return d.VerifiedCount + d.DisputedCount + d.UnverifiedCount + d.FalseCount
}

// AccuracyRatio returns the fraction of claims rated verified, or -1 when
// the domain has no rated claims yet.
func (d *DomainStat) AccuracyRatio() float64 {
	total := d.TotalClaims()
	if total == 0 {
		return -1
	}
	return float64(d.VerifiedCount) / float64(total)
}

// DomainStatDelta is one analysis run's contribution to a domain's
// counters.
type DomainStatDelta struct {
	Domain       string
	Verified     int64
	Disputed     int64
	Unverified   int64
	False        int64
	QualityScore float64
}
