// internal/analysis/normalizer_test.go
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"surrounding prose", `Sure! Here is the analysis: {"a": 1} hope that helps`, `{"a": 1}`, true},
		{"markdown fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"nested objects", `{"a": {"b": {"c": 1}}}`, `{"a": {"b": {"c": 1}}}`, true},
		{"braces inside strings", `{"msg": "use {curly} braces"}`, `{"msg": "use {curly} braces"}`, true},
		{"escaped quotes inside strings", `{"msg": "she said \"hi\" {x}"}`, `{"msg": "she said \"hi\" {x}"}`, true},
		{"no json at all", "I could not analyze the page, sorry.", "", false},
		{"truncated object", `{"a": {"b": 1}`, "", false},
		{"empty input", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAnalysis_WellFormed(t *testing.T) {
	raw := `{
		"currentPage": "Dashboard",
		"currentState": "logged in, project list visible",
		"availableActions": ["click New Project", "open settings"],
		"suggestedNextAction": {"type": "click", "selector": "#new-project", "reason": "start the flow"},
		"uxIssues": [
			{"id": "slow-spinner", "severity": "major", "category": "performance", "title": "Spinner shown too long", "description": "The list takes 4s to render."}
		],
		"progress": 40
	}`

	result, ok := ParseAnalysis(raw)
	require.True(t, ok)
	assert.Equal(t, "Dashboard", result.CurrentPage)
	assert.Equal(t, []string{"click New Project", "open settings"}, result.AvailableActions)
	require.NotNil(t, result.SuggestedAction)
	assert.Equal(t, schemas.ActionClick, result.SuggestedAction.Type)
	assert.Equal(t, "#new-project", result.SuggestedAction.Selector)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, schemas.SeverityMajor, result.Issues[0].Severity)
	assert.Equal(t, schemas.CategoryPerformance, result.Issues[0].Category)
	assert.Equal(t, 40, result.Progress)
}

// Malformed replies must never raise; anything unusable routes to the
// fallback via ok=false, anything salvageable comes back fully defaulted.
func TestParseAnalysis_MalformedReplies(t *testing.T) {
	t.Run("non-JSON reply is rejected", func(t *testing.T) {
		_, ok := ParseAnalysis("I don't know what to do next.")
		assert.False(t, ok)
	})

	t.Run("truncated JSON is rejected", func(t *testing.T) {
		_, ok := ParseAnalysis(`{"currentPage": "Dash`)
		assert.False(t, ok)
	})

	t.Run("empty object yields a fully defaulted result", func(t *testing.T) {
		result, ok := ParseAnalysis(`{}`)
		require.True(t, ok)
		assert.Equal(t, "", result.CurrentPage)
		assert.NotNil(t, result.AvailableActions)
		assert.Empty(t, result.AvailableActions)
		assert.Nil(t, result.SuggestedAction)
		assert.Empty(t, result.Issues)
		assert.Equal(t, 0, result.Progress)
	})

	t.Run("prose around the object is tolerated", func(t *testing.T) {
		result, ok := ParseAnalysis("Here you go:\n```json\n{\"progress\": 55}\n```\nLet me know!")
		require.True(t, ok)
		assert.Equal(t, 55, result.Progress)
	})
}

func TestCoerceIssues(t *testing.T) {
	t.Run("unknown severity degrades to minor", func(t *testing.T) {
		issues := coerceIssues([]rawIssue{{ID: "x", Severity: "catastrophic", Title: "t", Description: "d"}})
		require.Len(t, issues, 1)
		assert.Equal(t, schemas.SeverityMinor, issues[0].Severity)
	})

	t.Run("unknown category degrades to usability", func(t *testing.T) {
		issues := coerceIssues([]rawIssue{{ID: "x", Category: "vibes", Title: "t", Description: "d"}})
		require.Len(t, issues, 1)
		assert.Equal(t, schemas.CategoryUsability, issues[0].Category)
	})

	t.Run("severity and category are case-insensitive", func(t *testing.T) {
		issues := coerceIssues([]rawIssue{{ID: "x", Severity: "CRITICAL", Category: "Accessibility", Title: "t"}})
		require.Len(t, issues, 1)
		assert.Equal(t, schemas.SeverityCritical, issues[0].Severity)
		assert.Equal(t, schemas.CategoryAccessibility, issues[0].Category)
	})

	t.Run("missing id gets a positional one", func(t *testing.T) {
		issues := coerceIssues([]rawIssue{
			{Title: "first"},
			{ID: "named", Title: "second"},
			{Title: "third"},
		})
		require.Len(t, issues, 3)
		assert.Equal(t, "issue-1", issues[0].ID)
		assert.Equal(t, "named", issues[1].ID)
		assert.Equal(t, "issue-3", issues[2].ID)
	})

	t.Run("contentless issues are dropped", func(t *testing.T) {
		issues := coerceIssues([]rawIssue{{ID: "ghost", Severity: "critical"}})
		assert.Empty(t, issues)
	})

	t.Run("missing title falls back to description", func(t *testing.T) {
		issues := coerceIssues([]rawIssue{{ID: "x", Description: "button is unreachable"}})
		require.Len(t, issues, 1)
		assert.Equal(t, "button is unreachable", issues[0].Title)
	})
}

func TestCoerceAction(t *testing.T) {
	t.Run("nil action stays nil", func(t *testing.T) {
		assert.Nil(t, coerceAction(nil))
	})

	t.Run("unknown type collapses to short wait", func(t *testing.T) {
		action := coerceAction(map[string]interface{}{"type": "teleport"})
		require.NotNil(t, action)
		assert.Equal(t, schemas.ActionWait, action.Type)
		assert.Equal(t, 500, action.Duration)
	})

	t.Run("known type missing required fields collapses to short wait", func(t *testing.T) {
		action := coerceAction(map[string]interface{}{"type": "navigate"})
		require.NotNil(t, action)
		assert.Equal(t, schemas.ActionWait, action.Type)
	})

	t.Run("type is case-insensitive", func(t *testing.T) {
		action := coerceAction(map[string]interface{}{"type": "Click", "selector": "#go"})
		require.NotNil(t, action)
		assert.Equal(t, schemas.ActionClick, action.Type)
	})

	t.Run("position clicks survive coercion", func(t *testing.T) {
		action := coerceAction(map[string]interface{}{
			"type":     "click",
			"position": map[string]interface{}{"x": float64(10), "y": float64(20)},
		})
		require.NotNil(t, action)
		require.NotNil(t, action.Position)
		assert.Equal(t, 10.0, action.Position.X)
		assert.Equal(t, 20.0, action.Position.Y)
	})

	t.Run("duration arrives as a JSON number", func(t *testing.T) {
		action := coerceAction(map[string]interface{}{"type": "wait", "duration": float64(1200)})
		require.NotNil(t, action)
		assert.Equal(t, 1200, action.Duration)
	})
}

func TestClampProgress(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int
	}{
		{"normal number", float64(42), 42},
		{"above ceiling", float64(250), 100},
		{"negative", float64(-5), 0},
		{"numeric string", "73", 73},
		{"garbage string", "almost done", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampProgress(tt.in))
		})
	}
}
