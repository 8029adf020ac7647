// internal/reporting/recommendations.go
package reporting

import (
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// maxRecommendations caps the advice list in a report.
const maxRecommendations = 10

// categoryAdvice maps each issue category to a fixed recommendation.
var categoryAdvice = map[schemas.Category]string{
	schemas.CategoryUsability:     "Review interaction flows for friction: reduce the number of steps and make primary actions obvious.",
	schemas.CategoryAccessibility: "Audit the affected elements with a screen reader and verify labels, roles, and keyboard reachability.",
	schemas.CategoryPerformance:   "Profile slow operations and add loading feedback for anything that takes longer than a second.",
	schemas.CategoryVisual:        "Check the affected components across viewport sizes for overflow, clipping, and contrast problems.",
	schemas.CategoryFunctionality: "Fix the reported errors; broken functionality blocks users outright and masks other issues.",
	schemas.CategoryErrorHandling: "Surface actionable error messages to the user instead of failing silently or showing raw errors.",
	schemas.CategoryFeedback:      "Add visible confirmation for user actions so users know their input was received.",
	schemas.CategoryNavigation:    "Make navigation paths consistent and ensure users can always tell where they are.",
}

// BuildRecommendations combines the fixed category advice with unique
// per-issue suggestion strings, capped at maxRecommendations. The function
// is pure: same issues in, same list out.
func BuildRecommendations(issues []schemas.UXIssue) []string {
	recs := make([]string, 0, maxRecommendations)
	seen := make(map[string]struct{})

	add := func(rec string) {
		if rec == "" || len(recs) >= maxRecommendations {
			return
		}
		if _, dup := seen[rec]; dup {
			return
		}
		seen[rec] = struct{}{}
		recs = append(recs, rec)
	}

	// Category advice first, in discovery order of the categories.
	for _, issue := range issues {
		add(categoryAdvice[issue.Category])
	}

	// Then the issues' own suggestions.
	for _, issue := range issues {
		add(issue.Suggestion)
	}

	return recs
}
