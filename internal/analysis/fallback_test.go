// internal/analysis/fallback_test.go
package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

func testPageState() *schemas.PageState {
	return &schemas.PageState{
		URL:            "http://localhost:3000/",
		Title:          "TestStore Admin",
		Errors:         []schemas.PageError{},
		Console:        []schemas.ConsoleMessage{},
		FailedRequests: []schemas.FailedRequest{},
		CapturedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFallbackAnalysis_Deterministic(t *testing.T) {
	state := testPageState()
	state.Errors = append(state.Errors, schemas.PageError{Message: "ReferenceError: foo is not defined"})
	goal := "Create a project called TestStore"

	first := FallbackAnalysis(state, goal)
	second := FallbackAnalysis(state, goal)

	assert.Equal(t, first, second, "identical inputs must produce identical results")
}

func TestFallbackAnalysis_AlwaysActionable(t *testing.T) {
	goals := []string{
		"Create a project called TestStore",
		"Search for red shoes",
		"Submit the signup form",
		"Go to the settings page",
		"wander around aimlessly",
		"",
	}

	for _, goal := range goals {
		result := FallbackAnalysis(testPageState(), goal)
		require.NotNil(t, result.SuggestedAction, "goal %q", goal)
		assert.NoError(t, result.SuggestedAction.Validate(), "goal %q", goal)
		assert.Equal(t, 0, result.Progress, "fallback never claims progress")
	}
}

func TestFallbackAnalysis_CreateProjectGoal(t *testing.T) {
	result := FallbackAnalysis(testPageState(), "Create a project called TestStore")

	require.NotNil(t, result.SuggestedAction)
	assert.Equal(t, schemas.ActionTypeText, result.SuggestedAction.Type)
	assert.Equal(t, "textarea", result.SuggestedAction.Selector)
	assert.Equal(t, "create a project called TestStore", result.SuggestedAction.Text)
}

func TestFallbackAnalysis_IssuesFromErrorBuffers(t *testing.T) {
	state := testPageState()
	state.Errors = append(state.Errors, schemas.PageError{Message: "TypeError: cannot read properties of null"})
	state.Console = append(state.Console,
		schemas.ConsoleMessage{Level: "error", Text: "Failed to fetch"},
		schemas.ConsoleMessage{Level: "warning", Text: "deprecated API in use"},
	)
	state.FailedRequests = append(state.FailedRequests, schemas.FailedRequest{
		URL: "http://localhost:3000/api/projects", Method: "POST", Failure: "net::ERR_CONNECTION_REFUSED",
	})

	result := FallbackAnalysis(state, "explore")
	require.Len(t, result.Issues, 4)

	for _, issue := range result.Issues {
		assert.Equal(t, schemas.CategoryFunctionality, issue.Category)
		assert.NotEmpty(t, issue.ID)
		assert.NotEmpty(t, issue.Description)
	}

	// Console errors rank major, warnings minor.
	assert.Equal(t, schemas.SeverityMajor, result.Issues[1].Severity)
	assert.Equal(t, schemas.SeverityMinor, result.Issues[2].Severity)
}

func TestFallbackAnalysis_DistinctErrorsGetDistinctIDs(t *testing.T) {
	// Errors drained on different steps arrive in separate states; their
	// IDs must differ so first-wins merging keeps both.
	first := testPageState()
	first.Errors = append(first.Errors, schemas.PageError{Message: "ReferenceError: foo is not defined"})
	second := testPageState()
	second.Errors = append(second.Errors, schemas.PageError{Message: "TypeError: cannot read properties of null"})

	a := FallbackAnalysis(first, "explore")
	b := FallbackAnalysis(second, "explore")

	require.Len(t, a.Issues, 1)
	require.Len(t, b.Issues, 1)
	assert.NotEqual(t, a.Issues[0].ID, b.Issues[0].ID)

	// The same error sighted again keeps its ID, so it dedups upstream.
	again := FallbackAnalysis(first, "explore")
	assert.Equal(t, a.Issues[0].ID, again.Issues[0].ID)
}

func TestFallbackAnalysis_CleanPageHasNoIssues(t *testing.T) {
	result := FallbackAnalysis(testPageState(), "explore the dashboard")
	assert.Empty(t, result.Issues)
}

func TestLowerFirst(t *testing.T) {
	assert.Equal(t, "create a project called TestStore", lowerFirst("Create a project called TestStore"))
	assert.Equal(t, "already lower", lowerFirst("already lower"))
	assert.Equal(t, "", lowerFirst(""))
}
