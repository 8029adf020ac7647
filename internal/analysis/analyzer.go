// internal/analysis/analyzer.go
package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/config"
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// Analyzer is the boundary between the untrusted reasoning service and the
// typed decision the orchestrator consumes. Analyze never returns an error:
// every failure mode on the analysis channel is absorbed into the fallback.
type Analyzer struct {
	client Client
	logger *zap.Logger
	cfg    config.LLMConfig
}

// NewAnalyzer wires an analyzer around a reasoning-service client.
func NewAnalyzer(client Client, cfg config.LLMConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		logger: logger.Named("analyzer"),
		cfg:    cfg,
	}
}

// Analyze produces the next typed decision for one step. The history slice
// holds short descriptions of prior actions, oldest first.
func (a *Analyzer) Analyze(ctx context.Context, state *schemas.PageState, goal string, history []string) *schemas.AnalysisResult {
	if a.client == nil || !a.client.Available() {
		a.logger.Debug("Reasoning service unavailable; using fallback analysis.")
		return FallbackAnalysis(state, goal)
	}

	req := GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(state, goal, history),
		ImagePNG:     state.Screenshot,
		Options: GenerationOptions{
			Temperature:     a.cfg.Temperature,
			MaxTokens:       a.cfg.MaxTokens,
			ForceJSONFormat: true,
		},
	}

	raw, err := a.client.GenerateResponse(ctx, req)
	if err != nil {
		a.logger.Warn("Reasoning service call failed; using fallback analysis.", zap.Error(err))
		return FallbackAnalysis(state, goal)
	}

	result, ok := ParseAnalysis(raw)
	if !ok {
		a.logger.Warn("Reasoning service reply was unusable; using fallback analysis.",
			zap.Int("reply_length", len(raw)))
		return FallbackAnalysis(state, goal)
	}

	return result
}
