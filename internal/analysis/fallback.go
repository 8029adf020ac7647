// internal/analysis/fallback.go
package analysis

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// FallbackAnalysis is the deterministic decision path used when the
// reasoning service is unavailable or produced unusable output. It is a pure
// function of the page state and goal: identical inputs always yield the
// same result. Progress stays at 0 and the action is never nil, so the loop
// keeps moving until the step limit runs out.
func FallbackAnalysis(state *schemas.PageState, goal string) *schemas.AnalysisResult {
	result := &schemas.AnalysisResult{
		CurrentPage:      describePage(state),
		CurrentState:     "exploring without reasoning service",
		AvailableActions: []string{},
		Issues:           fallbackIssues(state),
		Progress:         0,
	}

	result.SuggestedAction = fallbackAction(state, goal)
	return result
}

// describePage renders a one-line description from the state.
func describePage(state *schemas.PageState) string {
	if state.Title != "" {
		return fmt.Sprintf("%s (%s)", state.Title, state.URL)
	}
	return state.URL
}

// issueID hashes the issue's source content into a stable identifier.
// Repeated sightings of the same defect across steps merge upstream, while
// distinct defects drained in any order never collide.
func issueID(kind string, parts ...string) string {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s-%08x", kind, h.Sum32())
}

// fallbackIssues raises functionality issues purely from the local error
// buffers. IDs derive from content so repeated sightings dedup upstream.
func fallbackIssues(state *schemas.PageState) []schemas.UXIssue {
	issues := make([]schemas.UXIssue, 0)

	for _, e := range state.Errors {
		issues = append(issues, schemas.UXIssue{
			ID:          issueID("page-error", e.Message),
			Severity:    schemas.SeverityMajor,
			Category:    schemas.CategoryFunctionality,
			Title:       "Uncaught page error",
			Description: e.Message,
			Location:    state.URL,
		})
	}

	for _, c := range state.Console {
		severity := schemas.SeverityMinor
		if c.Level == "error" {
			severity = schemas.SeverityMajor
		}
		issues = append(issues, schemas.UXIssue{
			ID:          issueID("console-"+c.Level, c.Text),
			Severity:    severity,
			Category:    schemas.CategoryFunctionality,
			Title:       fmt.Sprintf("Console %s logged", c.Level),
			Description: c.Text,
			Location:    state.URL,
		})
	}

	for _, r := range state.FailedRequests {
		issues = append(issues, schemas.UXIssue{
			ID:          issueID("failed-request", r.Method, r.URL, r.Failure),
			Severity:    schemas.SeverityMajor,
			Category:    schemas.CategoryFunctionality,
			Title:       "Network request failed",
			Description: fmt.Sprintf("%s %s failed: %s", r.Method, r.URL, r.Failure),
			Location:    r.URL,
		})
	}

	return issues
}

// fallbackAction keyword-matches the goal against a small set of canned
// actions. The default is a scroll so repeated fallback steps at least
// survey the page.
func fallbackAction(state *schemas.PageState, goal string) *schemas.Action {
	lower := strings.ToLower(goal)

	switch {
	case strings.Contains(lower, "create") && strings.Contains(lower, "project"):
		return &schemas.Action{
			Type:     schemas.ActionTypeText,
			Selector: "textarea",
			Text:     lowerFirst(goal),
			Reason:   "goal mentions creating a project; typing the request into the main input",
		}
	case strings.Contains(lower, "search"):
		return &schemas.Action{
			Type:     schemas.ActionTypeText,
			Selector: "input[type='search'], input[type='text']",
			Text:     lowerFirst(goal),
			Reason:   "goal mentions searching; typing into the search field",
		}
	case strings.Contains(lower, "submit") || strings.Contains(lower, "save"):
		return &schemas.Action{
			Type:     schemas.ActionClick,
			Selector: "button[type='submit']",
			Reason:   "goal mentions submitting; clicking the submit button",
		}
	case strings.Contains(lower, "navigate") || strings.Contains(lower, "go to"):
		return &schemas.Action{
			Type:      schemas.ActionScroll,
			Direction: "down",
			Reason:    "goal mentions navigation; scrolling to reveal navigation targets",
		}
	default:
		return &schemas.Action{
			Type:      schemas.ActionScroll,
			Direction: "down",
			Reason:    "no keyword match; scrolling to survey the page",
		}
	}
}

// lowerFirst lowercases only the first rune, preserving names inside the
// goal text.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
