// internal/agent/models.go
package agent

import (
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// phase is the orchestrator's lifecycle state for one run.
type phase string

const (
	phaseIdle      phase = "idle"
	phaseRunning   phase = "running"
	phaseCompleted phase = "completed"
	phaseFailed    phase = "failed"
	phaseExhausted phase = "exhausted"
)

// runState is the mutable state of one exploration run. Created at run
// start, mutated each iteration, discarded once the report is built.
type runState struct {
	scenario string
	phase    phase

	step     int
	maxSteps int

	// history holds short descriptions of executed actions, oldest first.
	history []string
	steps   []schemas.TestStep

	// issuesByID dedups issues across the run; issueOrder preserves
	// discovery order for stable reporting. First occurrence wins.
	issuesByID map[string]schemas.UXIssue
	issueOrder []string

	latest *schemas.PageState

	anyStepFailed bool
	terminalErr   error
}

func newRunState(scenario string, maxSteps int) *runState {
	return &runState{
		scenario:   scenario,
		phase:      phaseIdle,
		maxSteps:   maxSteps,
		issuesByID: make(map[string]schemas.UXIssue),
	}
}

// mergeIssues folds newly reported issues into the run-level set by id.
// Later duplicates of an existing id are discarded, not overwritten. It
// returns true when any issue in the batch is critical.
func (r *runState) mergeIssues(issues []schemas.UXIssue) bool {
	hasCritical := false
	for _, issue := range issues {
		if issue.Severity == schemas.SeverityCritical {
			hasCritical = true
		}
		if _, seen := r.issuesByID[issue.ID]; seen {
			continue
		}
		r.issuesByID[issue.ID] = issue
		r.issueOrder = append(r.issueOrder, issue.ID)
	}
	return hasCritical
}

// orderedIssues returns the accumulated issues in discovery order.
func (r *runState) orderedIssues() []schemas.UXIssue {
	issues := make([]schemas.UXIssue, 0, len(r.issueOrder))
	for _, id := range r.issueOrder {
		issues = append(issues, r.issuesByID[id])
	}
	return issues
}

// hasUnresolvedBlocker reports whether any accumulated issue is critical or
// major; a run only passes without one.
func (r *runState) hasUnresolvedBlocker() bool {
	for _, issue := range r.issuesByID {
		if issue.Severity == schemas.SeverityCritical || issue.Severity == schemas.SeverityMajor {
			return true
		}
	}
	return false
}
