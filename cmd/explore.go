// cmd/explore.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/agent"
	"github.com/kestrel-ux/kestrel/internal/analysis"
	"github.com/kestrel-ux/kestrel/internal/browser"
	"github.com/kestrel-ux/kestrel/internal/config"
	"github.com/kestrel-ux/kestrel/internal/observability"
	"github.com/kestrel-ux/kestrel/internal/reporting"
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

var scenarioFile string

// readScenarioFile returns the non-empty, non-comment lines of the file.
func readScenarioFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var scenarios []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		scenarios = append(scenarios, line)
	}
	return scenarios, nil
}

// newExploreCmd creates and configures the `explore` command.
func newExploreCmd() *cobra.Command {
	exploreCmd := &cobra.Command{
		Use:   "explore [scenarios...]",
		Short: "Explores the target app against one or more scenario goals and writes UX reports",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && cmd.Flags().Lookup("scenario-file").Value.String() == "" {
				return fmt.Errorf("requires at least one scenario argument or --scenario-file")
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags override
			// config file and environment values.
			if err := viper.BindPFlag("explore.base_url", cmd.Flags().Lookup("base-url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.stop_on_critical_issue", cmd.Flags().Lookup("stop-on-critical")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.screenshot_on_each_step", cmd.Flags().Lookup("screenshots")); err != nil {
				return err
			}
			if err := viper.BindPFlag("explore.output_dir", cmd.Flags().Lookup("output-dir")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			scenarios := args
			if scenarioFile != "" {
				fromFile, err := readScenarioFile(scenarioFile)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, fromFile...)
			}
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenarios to run")
			}

			logger.Info("Starting exploration",
				zap.Strings("scenarios", scenarios),
				zap.String("base_url", cfg.Explore.BaseURL),
				zap.Int("max_steps", cfg.Explore.MaxSteps),
				zap.Bool("headless", cfg.Browser.Headless),
			)

			return runExplore(ctx, cfg, scenarios, logger)
		},
	}

	exploreCmd.Flags().StringVar(&scenarioFile, "scenario-file", "", "file with one scenario goal per line")
	exploreCmd.Flags().String("base-url", "", "base URL of the application under test")
	exploreCmd.Flags().Int("max-steps", 0, "maximum steps per scenario")
	exploreCmd.Flags().Bool("stop-on-critical", false, "halt a run at the first critical issue")
	exploreCmd.Flags().Bool("screenshots", true, "capture a screenshot on each step")
	exploreCmd.Flags().String("output-dir", "", "directory for UX reports")
	exploreCmd.Flags().Bool("headless", true, "run the browser headless")

	return exploreCmd
}

// runExplore wires the browser, analyzer, orchestrator, and reporter
// together and runs the scenarios sequentially.
func runExplore(ctx context.Context, cfg *config.Config, scenarios []string, logger *zap.Logger) error {
	manager, err := browser.NewManager(ctx, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	defer session.Close()

	client := analysis.NewGeminiClient(cfg.LLM, logger)
	if !client.Available() {
		logger.Warn("No reasoning-service credential configured; runs will use the deterministic fallback.")
	}
	analyzer := analysis.NewAnalyzer(client, cfg.LLM, logger)

	explorer := agent.NewExplorer(session, analyzer, cfg, logger)

	outputDir, err := cfg.ResolveOutputDir()
	if err != nil {
		return err
	}
	reporter, err := reporting.NewReporter(outputDir, logger)
	if err != nil {
		return err
	}

	reports := explorer.RunScenarios(ctx, scenarios)

	var failed int
	for _, report := range reports {
		if _, _, err := reporter.Write(report); err != nil {
			// An unwritable report is an environment problem; propagate.
			return err
		}
		if report.Status == schemas.StatusFailed {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenario(s) failed", failed, len(reports))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newExploreCmd())
}
