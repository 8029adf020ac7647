// internal/reporting/html.go
package reporting

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// reportTemplate renders a self-contained HTML document: no external
// assets, so the file can be attached to a ticket or opened offline.
var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": formatDuration,
	"formatTime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>UX Report: {{.Scenario}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; background: #f5f6f8; color: #1f2430; }
  .wrap { max-width: 960px; margin: 0 auto; padding: 24px; }
  header { padding: 16px 0; border-bottom: 2px solid #d9dce3; margin-bottom: 24px; }
  h1 { font-size: 1.4rem; margin: 0 0 8px; }
  .meta { color: #5a6072; font-size: 0.9rem; }
  .status { display: inline-block; padding: 2px 10px; border-radius: 12px; font-weight: 600; font-size: 0.85rem; text-transform: uppercase; }
  .status-passed { background: #d9f2e0; color: #156636; }
  .status-failed { background: #fbdcdc; color: #9d1c1c; }
  .status-partial { background: #fdf0d3; color: #8a6410; }
  h2 { font-size: 1.1rem; margin: 32px 0 12px; }
  .card { background: #fff; border: 1px solid #e2e5ec; border-left: 4px solid #9aa1b1; border-radius: 6px; padding: 12px 16px; margin-bottom: 12px; }
  .card.critical { border-left-color: #c0392b; }
  .card.major { border-left-color: #e67e22; }
  .card.minor { border-left-color: #f1c40f; }
  .card.suggestion { border-left-color: #3498db; }
  .card h3 { margin: 0 0 6px; font-size: 1rem; }
  .badge { font-size: 0.75rem; padding: 1px 8px; border-radius: 10px; background: #eceef3; color: #4a5063; margin-right: 6px; }
  .card p { margin: 6px 0; font-size: 0.92rem; }
  .suggestion-text { color: #156636; }
  table { width: 100%; border-collapse: collapse; background: #fff; border: 1px solid #e2e5ec; border-radius: 6px; }
  th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #eef0f4; font-size: 0.9rem; }
  th { background: #f0f2f6; }
  tr.failure td { background: #fdf3f3; }
  tr.warning td { background: #fdf9ee; }
  ul.recs li { margin-bottom: 6px; font-size: 0.92rem; }
  img.shot { max-width: 320px; border: 1px solid #d9dce3; border-radius: 4px; margin-top: 6px; }
  .empty { color: #5a6072; font-style: italic; }
</style>
</head>
<body>
<div class="wrap">
<header>
  <h1>UX Exploration Report</h1>
  <div class="meta">
    Scenario: <strong>{{.Scenario}}</strong> &middot;
    <span class="status status-{{.Status}}">{{.Status}}</span> &middot;
    {{len .Steps}} step(s) &middot; {{len .Issues}} issue(s) &middot;
    {{formatDuration .Duration}} &middot; started {{formatTime .StartedAt}}
  </div>
</header>

<p>{{.Summary}}</p>

<h2>Issues</h2>
{{if .Issues}}
  {{range .Issues}}
  <div class="card {{.Severity}}">
    <h3>{{.Title}}</h3>
    <div>
      <span class="badge">{{.Severity}}</span>
      <span class="badge">{{.Category}}</span>
      {{if .Location}}<span class="badge">{{.Location}}</span>{{end}}
    </div>
    <p>{{.Description}}</p>
    {{if .Suggestion}}<p class="suggestion-text">Suggestion: {{.Suggestion}}</p>{{end}}
  </div>
  {{end}}
{{else}}
  <p class="empty">No issues found.</p>
{{end}}

<h2>Step Timeline</h2>
{{if .Steps}}
<table>
  <tr><th>#</th><th>Action</th><th>Result</th><th>Duration</th><th>Notes</th></tr>
  {{range .Steps}}
  <tr class="{{.Result}}">
    <td>{{.StepNumber}}</td>
    <td>{{.ActionDescription}}</td>
    <td>{{.Result}}</td>
    <td>{{formatDuration .Duration}}</td>
    <td>{{.Notes}}</td>
  </tr>
  {{end}}
</table>
{{else}}
  <p class="empty">No steps executed.</p>
{{end}}

<h2>Recommendations</h2>
{{if .Recommendations}}
<ul class="recs">
  {{range .Recommendations}}<li>{{.}}</li>{{end}}
</ul>
{{else}}
  <p class="empty">No recommendations.</p>
{{end}}

</div>
</body>
</html>
`))

// htmlStep flattens a TestStep for the template.
type htmlStep struct {
	StepNumber        int
	ActionDescription string
	Result            schemas.StepResult
	Duration          time.Duration
	Notes             string
}

// htmlReport is the template's view of a report, with issues pre-sorted.
type htmlReport struct {
	Scenario        string
	Status          schemas.RunStatus
	StartedAt       time.Time
	Duration        time.Duration
	Summary         string
	Issues          []schemas.UXIssue
	Steps           []htmlStep
	Recommendations []string
}

// renderHTML produces the self-contained HTML document for one report.
func renderHTML(report *schemas.UXReport) (string, error) {
	view := htmlReport{
		Scenario:        report.Scenario,
		Status:          report.Status,
		StartedAt:       report.StartedAt,
		Duration:        report.Duration,
		Summary:         report.Summary,
		Issues:          sortIssues(report.Issues),
		Recommendations: report.Recommendations,
	}

	for _, step := range report.Steps {
		view.Steps = append(view.Steps, htmlStep{
			StepNumber:        step.StepNumber,
			ActionDescription: step.Action.Describe(),
			Result:            step.Result,
			Duration:          step.Duration,
			Notes:             step.Notes,
		})
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, view); err != nil {
		return "", err
	}
	return b.String(), nil
}

// formatDuration renders durations at millisecond precision.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}
