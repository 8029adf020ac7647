// internal/analysis/normalizer.go
package analysis

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rawAnalysis mirrors AnalysisResult with every field loosened so a sloppy
// reply still unmarshals. Coercion into the typed result happens per field.
type rawAnalysis struct {
	CurrentPage      string                 `json:"currentPage"`
	CurrentState     string                 `json:"currentState"`
	AvailableActions []string               `json:"availableActions"`
	SuggestedAction  map[string]interface{} `json:"suggestedNextAction"`
	Issues           []rawIssue             `json:"uxIssues"`
	Progress         interface{}            `json:"progress"`
}

type rawIssue struct {
	ID          string `json:"id"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Suggestion  string `json:"suggestion"`
}

// ParseAnalysis converts the raw service reply into a typed AnalysisResult.
// It never fails: an unusable reply returns (nil, false) and the caller
// switches to the fallback path.
func ParseAnalysis(raw string) (*schemas.AnalysisResult, bool) {
	jsonStr, ok := extractJSONObject(raw)
	if !ok {
		return nil, false
	}

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, false
	}

	result := &schemas.AnalysisResult{
		CurrentPage:      parsed.CurrentPage,
		CurrentState:     parsed.CurrentState,
		AvailableActions: parsed.AvailableActions,
		SuggestedAction:  coerceAction(parsed.SuggestedAction),
		Issues:           coerceIssues(parsed.Issues),
		Progress:         clampProgress(parsed.Progress),
	}
	if result.AvailableActions == nil {
		result.AvailableActions = []string{}
	}
	return result, true
}

// extractJSONObject finds the first balanced top-level JSON object in free
// text, tolerating surrounding prose and markdown fences. String literals
// and escapes are respected so braces inside them don't break the balance.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// coerceIssues validates each issue independently; a bad field degrades to a
// safe default instead of rejecting the whole issue. Issues without any
// content at all are dropped. Missing ids get positional ones so identity
// dedup still works.
func coerceIssues(raw []rawIssue) []schemas.UXIssue {
	issues := make([]schemas.UXIssue, 0, len(raw))
	for i, r := range raw {
		if r.Title == "" && r.Description == "" {
			continue
		}

		issue := schemas.UXIssue{
			ID:          strings.TrimSpace(r.ID),
			Severity:    coerceSeverity(r.Severity),
			Category:    coerceCategory(r.Category),
			Title:       r.Title,
			Description: r.Description,
			Location:    r.Location,
			Suggestion:  r.Suggestion,
		}
		if issue.ID == "" {
			issue.ID = fmt.Sprintf("issue-%d", i+1)
		}
		if issue.Title == "" {
			issue.Title = truncateTitle(issue.Description)
		}
		issues = append(issues, issue)
	}
	return issues
}

func coerceSeverity(s string) schemas.Severity {
	sev := schemas.Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Valid() {
		return sev
	}
	return schemas.SeverityMinor
}

func coerceCategory(s string) schemas.Category {
	cat := schemas.Category(strings.ToLower(strings.TrimSpace(s)))
	if cat.Valid() {
		return cat
	}
	return schemas.CategoryUsability
}

// shortWait is the safe default action when the declared type is unusable.
func shortWait() *schemas.Action {
	return &schemas.Action{Type: schemas.ActionWait, Duration: 500}
}

// coerceAction re-validates the suggested action per its declared type. A
// nil map stays nil (a completed goal legitimately has no next action); an
// unrecognized or under-specified action collapses to a short wait.
func coerceAction(raw map[string]interface{}) *schemas.Action {
	if raw == nil {
		return nil
	}

	action := &schemas.Action{
		Type:      schemas.ActionType(strings.ToLower(stringField(raw, "type"))),
		Selector:  stringField(raw, "selector"),
		Text:      stringField(raw, "text"),
		URL:       stringField(raw, "url"),
		Key:       stringField(raw, "key"),
		Value:     stringField(raw, "value"),
		Direction: strings.ToLower(stringField(raw, "direction")),
		Duration:  intField(raw, "duration"),
		Reason:    stringField(raw, "reason"),
	}

	if pos, ok := raw["position"].(map[string]interface{}); ok {
		x, xok := numberField(pos, "x")
		y, yok := numberField(pos, "y")
		if xok && yok {
			action.Position = &schemas.Point{X: x, Y: y}
		}
	}

	if !action.Type.Valid() {
		return shortWait()
	}
	if err := action.Validate(); err != nil {
		return shortWait()
	}
	return action
}

// clampProgress accepts numbers or numeric strings and clamps to 0-100.
// Anything else reads as zero.
func clampProgress(v interface{}) int {
	var p float64
	switch n := v.(type) {
	case float64:
		p = n
	case int:
		p = float64(n)
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%f", &p); err != nil {
			return 0
		}
	default:
		return 0
	}

	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intField(m map[string]interface{}, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

func numberField(m map[string]interface{}, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 60 {
		return s
	}
	return s[:60] + "..."
}
