// internal/agent/agent.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/config"
	"github.com/kestrel-ux/kestrel/internal/reporting"
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// Driver is the narrow browser surface the orchestrator drives.
type Driver interface {
	CapturePageState(ctx context.Context, withScreenshot bool) (*schemas.PageState, error)
	Execute(ctx context.Context, action schemas.Action) schemas.ActionResult
	Navigate(ctx context.Context, url string) error
	Reset(ctx context.Context) error
}

// Analyzer turns a page state plus goal into a typed decision. It never
// fails; unusable analysis channels resolve to the fallback internally.
type Analyzer interface {
	Analyze(ctx context.Context, state *schemas.PageState, goal string, history []string) *schemas.AnalysisResult
}

// stuckWindow is how many consecutive low-progress steps trigger the
// stuck-exploration warning.
const stuckWindow = 5

// Explorer runs the capture/analyze/act loop for one scenario at a time.
type Explorer struct {
	driver   Driver
	analyzer Analyzer
	cfg      *config.Config
	logger   *zap.Logger
}

// NewExplorer wires an orchestrator from its collaborators.
func NewExplorer(driver Driver, analyzer Analyzer, cfg *config.Config, logger *zap.Logger) *Explorer {
	return &Explorer{
		driver:   driver,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger.Named("agent"),
	}
}

// Run explores one scenario to completion, exhaustion, or failure and always
// returns a report. Run never returns an error: everything that goes wrong
// inside the loop becomes data on the report.
func (e *Explorer) Run(ctx context.Context, scenario string) *schemas.UXReport {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Explore.Timeout)
	defer cancel()

	state := newRunState(scenario, e.cfg.Explore.MaxSteps)
	startedAt := time.Now()

	logger := e.logger.With(zap.String("scenario", scenario))
	logger.Info("Starting exploration run",
		zap.Int("max_steps", state.maxSteps),
		zap.Duration("timeout", e.cfg.Explore.Timeout))

	if err := e.driver.Navigate(runCtx, e.cfg.Explore.BaseURL); err != nil {
		logger.Error("Initial navigation failed; aborting run.", zap.Error(err))
		state.terminalErr = fmt.Errorf("initial navigation to %s failed: %w", e.cfg.Explore.BaseURL, err)
		state.phase = phaseFailed
		return e.buildReport(state, startedAt)
	}

	state.phase = phaseRunning
	e.loop(runCtx, state, logger)

	report := e.buildReport(state, startedAt)
	logger.Info("Exploration run finished",
		zap.String("status", string(report.Status)),
		zap.Int("steps", len(report.Steps)),
		zap.Int("issues", len(report.Issues)),
		zap.Duration("duration", report.Duration))
	return report
}

// loop drives the capture/analyze/act iterations until a terminal phase.
func (e *Explorer) loop(ctx context.Context, state *runState, logger *zap.Logger) {
	staleSteps := 0
	stuckWarned := false

	for state.step < state.maxSteps {
		if ctx.Err() != nil {
			logger.Warn("Run deadline reached; stopping.", zap.Error(ctx.Err()))
			state.terminalErr = fmt.Errorf("run timed out: %w", ctx.Err())
			state.phase = phaseFailed
			return
		}

		state.step++
		progress := e.runStep(ctx, state, logger)

		switch state.phase {
		case phaseCompleted, phaseFailed:
			return
		}

		// Stuck-exploration heuristic: observe, don't intervene.
		if progress < 10 {
			staleSteps++
		} else {
			staleSteps = 0
		}
		if staleSteps >= stuckWindow && !stuckWarned {
			logger.Warn("Exploration appears stuck: progress has stayed low.",
				zap.Int("steps_without_progress", staleSteps))
			stuckWarned = true
		}
	}

	state.phase = phaseExhausted
	logger.Warn("Reached maximum step limit without completing the goal.",
		zap.Int("max_steps", state.maxSteps))
}

// runStep executes one iteration and returns the reported progress. Any
// panic inside the step converts into a failed TestStep; a single bad step
// never aborts the run.
func (e *Explorer) runStep(ctx context.Context, state *runState, logger *zap.Logger) (progress int) {
	stepStart := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Step panicked; recording as failed step.", zap.Any("panic", r))
			state.anyStepFailed = true
			state.steps = append(state.steps, schemas.TestStep{
				StepNumber: state.step,
				Action:     schemas.Action{Type: schemas.ActionWait},
				Result:     schemas.StepFailure,
				Duration:   time.Since(stepStart),
				Notes:      fmt.Sprintf("step panicked: %v", r),
			})
		}
	}()

	logger.Info("Exploration step", zap.Int("step", state.step), zap.Int("max_steps", state.maxSteps))

	// 1. Capture.
	pageState, err := e.driver.CapturePageState(ctx, e.cfg.Explore.ScreenshotOnEachStep)
	if err != nil {
		logger.Warn("Page state capture failed.", zap.Error(err))
		state.anyStepFailed = true
		state.steps = append(state.steps, schemas.TestStep{
			StepNumber: state.step,
			Action:     schemas.Action{Type: schemas.ActionScreenshot},
			Result:     schemas.StepFailure,
			Duration:   time.Since(stepStart),
			Notes:      fmt.Sprintf("state capture failed: %s", err),
		})
		e.settle(ctx)
		return 0
	}
	state.latest = pageState

	// 2. Analyze.
	analysis := e.analyzer.Analyze(ctx, pageState, state.scenario, state.history)

	// 3. Merge issues; first occurrence of an id wins.
	hasCritical := state.mergeIssues(analysis.Issues)

	// 4. Critical-issue stop: record the step without executing its action.
	if hasCritical && e.cfg.Explore.StopOnCriticalIssue {
		logger.Warn("Critical issue reported; stopping run before executing the step action.")
		step := schemas.TestStep{
			StepNumber: state.step,
			Result:     schemas.StepFailure,
			Screenshot: pageState.Screenshot,
			Duration:   time.Since(stepStart),
			Notes:      "stopped on critical issue; action not executed",
		}
		if analysis.SuggestedAction != nil {
			step.Action = *analysis.SuggestedAction
		}
		state.steps = append(state.steps, step)
		state.anyStepFailed = true
		state.phase = phaseFailed
		return analysis.Progress
	}

	// 5. Execute the suggested action, if any.
	if analysis.SuggestedAction != nil {
		action := *analysis.SuggestedAction
		result := e.driver.Execute(ctx, action)

		step := schemas.TestStep{
			StepNumber: state.step,
			Action:     action,
			Screenshot: pageState.Screenshot,
			Duration:   time.Since(stepStart),
		}
		switch {
		case !result.Success:
			step.Result = schemas.StepFailure
			step.Notes = result.Error
			state.anyStepFailed = true
			logger.Warn("Action failed.", zap.String("action", action.Describe()), zap.String("error", result.Error))
		case pageState.HasErrors():
			step.Result = schemas.StepWarning
			step.Notes = "page reported errors during this step"
		default:
			step.Result = schemas.StepSuccess
		}
		state.steps = append(state.steps, step)
		state.history = append(state.history, action.Describe())

		e.settle(ctx)
	} else {
		// No action suggested: record the observation step.
		state.steps = append(state.steps, schemas.TestStep{
			StepNumber: state.step,
			Action:     schemas.Action{Type: schemas.ActionWait},
			Result:     schemas.StepSuccess,
			Screenshot: pageState.Screenshot,
			Duration:   time.Since(stepStart),
			Notes:      "no action suggested",
		})
	}

	// 6. Completion check.
	if analysis.Progress >= 100 {
		logger.Info("Goal reported complete.", zap.Int("step", state.step))
		state.phase = phaseCompleted
	}

	return analysis.Progress
}

// settle applies the fixed delay between an action and the next capture.
func (e *Explorer) settle(ctx context.Context) {
	delay := e.cfg.Explore.SettleDelay
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// buildReport freezes the run state into the immutable report.
func (e *Explorer) buildReport(state *runState, startedAt time.Time) *schemas.UXReport {
	endedAt := time.Now()
	issues := state.orderedIssues()

	report := &schemas.UXReport{
		Scenario:  state.scenario,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Duration:  endedAt.Sub(startedAt),
		Status:    e.finalStatus(state),
		Steps:     state.steps,
		Issues:    issues,
	}
	if report.Steps == nil {
		report.Steps = []schemas.TestStep{}
	}

	report.Summary = e.buildSummary(state, report)
	report.Recommendations = reporting.BuildRecommendations(issues)
	return report
}

// finalStatus derives the report status: failed if any step failed or a
// terminal error was recorded; passed only when complete with no unresolved
// critical/major issue; partial otherwise.
func (e *Explorer) finalStatus(state *runState) schemas.RunStatus {
	if state.anyStepFailed || state.terminalErr != nil {
		return schemas.StatusFailed
	}
	if state.phase == phaseCompleted && !state.hasUnresolvedBlocker() {
		return schemas.StatusPassed
	}
	return schemas.StatusPartial
}

func (e *Explorer) buildSummary(state *runState, report *schemas.UXReport) string {
	switch state.phase {
	case phaseCompleted:
		return fmt.Sprintf("Goal %q completed in %d steps with %d issue(s) found.",
			state.scenario, len(report.Steps), len(report.Issues))
	case phaseExhausted:
		return fmt.Sprintf("Reached maximum step limit (%d) before completing goal %q; %d issue(s) found.",
			state.maxSteps, state.scenario, len(report.Issues))
	case phaseFailed:
		if state.terminalErr != nil {
			return fmt.Sprintf("Run for goal %q aborted: %s", state.scenario, state.terminalErr)
		}
		return fmt.Sprintf("Run for goal %q failed after %d step(s); %d issue(s) found.",
			state.scenario, len(report.Steps), len(report.Issues))
	default:
		return fmt.Sprintf("Run for goal %q ended in state %s.", state.scenario, state.phase)
	}
}

// RunScenarios explores scenarios sequentially, resetting navigation between
// them so no state leaks across runs. One scenario's failure never aborts
// the batch.
func (e *Explorer) RunScenarios(ctx context.Context, scenarios []string) []*schemas.UXReport {
	reports := make([]*schemas.UXReport, 0, len(scenarios))

	for i, scenario := range scenarios {
		if i > 0 {
			if err := e.driver.Reset(ctx); err != nil {
				e.logger.Warn("Failed to reset session between scenarios.", zap.Error(err))
			}
		}
		reports = append(reports, e.Run(ctx, scenario))
	}

	return reports
}
