package model

import "time"

// SectionType names one of the six report sections.
type SectionType string

const (
	SectionOverview        SectionType = "overview"
	SectionTriage          SectionType = "triage"
	SectionTruthCheck      SectionType = "truth_check"
	SectionActionItems     SectionType = "action_items"
	SectionDetailedSummary SectionType = "detailed_summary"
	SectionTags            SectionType = "tags"
)

// AllSections lists every section type in generation order.
var AllSections = []SectionType{
	SectionOverview,
	SectionTriage,
	SectionTruthCheck,
	SectionActionItems,
	SectionDetailedSummary,
	SectionTags,
}

// CriticalSections are retried once in the self-heal pass when the main
// generation phase fails them.
var CriticalSections = []SectionType{
	SectionOverview,
	SectionTriage,
	SectionDetailedSummary,
}

// ProcessingStatus tracks the lifecycle of an AnalysisResult. It only
// advances forward, except on explicit forced regeneration which resets it.
type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusTranscribing ProcessingStatus = "transcribing"
	StatusPartial      ProcessingStatus = "partial"
	StatusRefused      ProcessingStatus = "refused"
	StatusComplete     ProcessingStatus = "complete"
)

// statusRank orders statuses so transitions can be validated as
// forward-only. Terminal states share the highest rank.
var statusRank = map[ProcessingStatus]int{
	StatusPending:      0,
	StatusTranscribing: 1,
	StatusPartial:      2,
	StatusRefused:      3,
	StatusComplete:     3,
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition.
func (s ProcessingStatus) CanAdvanceTo(next ProcessingStatus) bool {
	cur, ok := statusRank[s]
	if !ok {
		return true
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Terminal reports whether s is a terminal state.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusComplete || s == StatusRefused
}

// Section is one persisted report section. Each section is written the
// instant it finishes, never all-or-nothing.
type Section struct {
	Type      SectionType `json:"type"`
	Body      string      `json:"body"` // JSON payload, shape depends on Type
	Model     string      `json:"model,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AnalysisResult holds the report for one (content, language) pair.
type AnalysisResult struct {
	ContentID  string                  `json:"content_id"`
	Language   string                  `json:"language"`
	Status     ProcessingStatus        `json:"status"`
	Sections   map[SectionType]Section `json:"sections"`
	Provenance Provenance              `json:"provenance"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Provenance records which model produced the analysis and what it cost.
type Provenance struct {
	Model        string `json:"model,omitempty"`
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
}

// Add accumulates token counts from another provenance record.
func (p *Provenance) Add(other Provenance) {
	if other.Model != "" {
		p.Model = other.Model
	}
	p.InputTokens += other.InputTokens
	p.OutputTokens += other.OutputTokens
}

// TriageVerdict is the decoded triage section used to route downstream
// behavior.
type TriageVerdict struct {
	ContentCategory string  `json:"content_category"`
	QualityScore    float64 `json:"quality_score"`
	Assessment      string  `json:"assessment"`
}

// SkipFactCheck reports whether the triage classification means truth-check
// and action-items output should be computed but not persisted.
func (t TriageVerdict) SkipFactCheck() bool {
	switch t.ContentCategory {
	case "music", "entertainment":
		return true
	}
	return false
}
