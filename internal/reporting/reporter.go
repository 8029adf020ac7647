// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter persists finished UXReports. It is a pure consumer: it never
// mutates a report, and disk errors propagate to the caller since an
// unwritable report is an environment problem, not a run-logic failure.
type Reporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewReporter creates the output directory if missing and returns a
// reporter writing into it.
func NewReporter(outputDir string, logger *zap.Logger) (*Reporter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	return &Reporter{
		outputDir: outputDir,
		logger:    logger.Named("reporter"),
	}, nil
}

// Write persists one report as an HTML document and an equivalent JSON
// document under a timestamp-derived filename, then prints a condensed
// console summary. It returns the two paths written.
func (r *Reporter) Write(report *schemas.UXReport) (htmlPath, jsonPath string, err error) {
	base := "ux-report-" + sanitizeTimestamp(report.StartedAt)
	htmlPath = filepath.Join(r.outputDir, base+".html")
	jsonPath = filepath.Join(r.outputDir, base+".json")

	htmlDoc, err := renderHTML(report)
	if err != nil {
		return "", "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	if err := os.WriteFile(htmlPath, []byte(htmlDoc), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write HTML report: %w", err)
	}

	jsonDoc, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal JSON report: %w", err)
	}
	if err := os.WriteFile(jsonPath, jsonDoc, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write JSON report: %w", err)
	}

	r.logSummary(report, htmlPath)
	return htmlPath, jsonPath, nil
}

// sanitizeTimestamp renders an ISO timestamp safe for filenames on every
// platform (colons removed).
func sanitizeTimestamp(t time.Time) string {
	iso := t.UTC().Format(time.RFC3339)
	replacer := strings.NewReplacer(":", "-", "+", "_")
	return replacer.Replace(iso)
}

// logSummary prints the condensed console summary for one run.
func (r *Reporter) logSummary(report *schemas.UXReport, htmlPath string) {
	counts := make(map[schemas.Severity]int)
	for _, issue := range report.Issues {
		counts[issue.Severity]++
	}

	r.logger.Info("UX report written",
		zap.String("scenario", report.Scenario),
		zap.String("status", string(report.Status)),
		zap.Int("steps", len(report.Steps)),
		zap.Int("issues", len(report.Issues)),
		zap.Int("critical", counts[schemas.SeverityCritical]),
		zap.Int("major", counts[schemas.SeverityMajor]),
		zap.Int("minor", counts[schemas.SeverityMinor]),
		zap.Int("suggestions", counts[schemas.SeveritySuggestion]),
		zap.Duration("duration", report.Duration),
		zap.String("report", htmlPath),
	)
}

// sortIssues orders issues critical first, with a stable sort so discovery
// order is preserved within each severity tier.
func sortIssues(issues []schemas.UXIssue) []schemas.UXIssue {
	sorted := make([]schemas.UXIssue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() < sorted[j].Severity.Rank()
	})
	return sorted
}
