// internal/schemas/schemas.go
package schemas

import (
	"time"
)

// Severity ranks how badly a UX issue hurts the user.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityMajor      Severity = "major"
	SeverityMinor      Severity = "minor"
	SeveritySuggestion Severity = "suggestion"
)

// severityRank orders severities for report sorting (lower sorts first).
var severityRank = map[Severity]int{
	SeverityCritical:   0,
	SeverityMajor:      1,
	SeverityMinor:      2,
	SeveritySuggestion: 3,
}

// Rank returns the sort weight of the severity; unknown values sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Valid reports whether the severity is one of the closed set.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Category classifies the kind of UX defect observed.
type Category string

const (
	CategoryUsability     Category = "usability"
	CategoryAccessibility Category = "accessibility"
	CategoryPerformance   Category = "performance"
	CategoryVisual        Category = "visual"
	CategoryFunctionality Category = "functionality"
	CategoryErrorHandling Category = "error_handling"
	CategoryFeedback      Category = "feedback"
	CategoryNavigation    Category = "navigation"
)

var validCategories = map[Category]struct{}{
	CategoryUsability:     {},
	CategoryAccessibility: {},
	CategoryPerformance:   {},
	CategoryVisual:        {},
	CategoryFunctionality: {},
	CategoryErrorHandling: {},
	CategoryFeedback:      {},
	CategoryNavigation:    {},
}

// Valid reports whether the category is one of the closed set.
func (c Category) Valid() bool {
	_, ok := validCategories[c]
	return ok
}

// UXIssue is a single structured defect report. Identity is the ID; issues
// accumulate monotonically across a run, deduplicated by ID (first wins).
type UXIssue struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Screenshot  string   `json:"screenshot,omitempty"`
}

// StepResult is the outcome of a single executed step.
type StepResult string

const (
	StepSuccess StepResult = "success"
	StepFailure StepResult = "failure"
	StepWarning StepResult = "warning"
)

// TestStep records one iteration of the capture/analyze/act loop.
// StepNumber is 1-based and equals execution order; the log is append-only.
type TestStep struct {
	StepNumber int           `json:"stepNumber"`
	Action     Action        `json:"action"`
	Result     StepResult    `json:"result"`
	Screenshot string        `json:"screenshot,omitempty"`
	Duration   time.Duration `json:"duration"`
	Notes      string        `json:"notes,omitempty"`
}

// RunStatus is the final verdict of one exploration run.
type RunStatus string

const (
	StatusPassed  RunStatus = "passed"
	StatusFailed  RunStatus = "failed"
	StatusPartial RunStatus = "partial"
)

// UXReport is the sole externally persisted artifact of a run.
// It is immutable once built.
type UXReport struct {
	Scenario        string        `json:"scenario"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         time.Time     `json:"endedAt"`
	Duration        time.Duration `json:"duration"`
	Status          RunStatus     `json:"status"`
	Steps           []TestStep    `json:"steps"`
	Issues          []UXIssue     `json:"issues"`
	Summary         string        `json:"summary"`
	Recommendations []string      `json:"recommendations"`
}

// AnalysisResult is the strictly typed decision produced by the normalizer
// from the reasoning service's free-text reply (or from the fallback path).
type AnalysisResult struct {
	CurrentPage      string    `json:"currentPage"`
	CurrentState     string    `json:"currentState"`
	AvailableActions []string  `json:"availableActions"`
	SuggestedAction  *Action   `json:"suggestedNextAction"`
	Issues           []UXIssue `json:"uxIssues"`
	// Progress toward the scenario goal, clamped to 0-100.
	Progress int `json:"progress"`
}
