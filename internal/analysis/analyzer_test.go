// internal/analysis/analyzer_test.go
package analysis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/config"
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// stubClient is a canned reasoning-service client for analyzer tests.
type stubClient struct {
	available bool
	reply     string
	err       error
	calls     int
}

func (s *stubClient) GenerateResponse(_ context.Context, _ GenerationRequest) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubClient) Available() bool { return s.available }

func TestAnalyzer(t *testing.T) {
	logger := zap.NewNop()
	cfg := config.NewDefaultConfig().LLM

	t.Run("unavailable client routes to fallback without calling the service", func(t *testing.T) {
		client := &stubClient{available: false}
		a := NewAnalyzer(client, cfg, logger)

		result := a.Analyze(context.Background(), testPageState(), "Create a project called TestStore", nil)
		require.NotNil(t, result)
		require.NotNil(t, result.SuggestedAction)
		assert.Equal(t, schemas.ActionTypeText, result.SuggestedAction.Type)
		assert.Equal(t, 0, client.calls)
	})

	t.Run("service error routes to fallback", func(t *testing.T) {
		client := &stubClient{available: true, err: fmt.Errorf("connection reset")}
		a := NewAnalyzer(client, cfg, logger)

		result := a.Analyze(context.Background(), testPageState(), "explore", nil)
		require.NotNil(t, result)
		assert.Equal(t, 0, result.Progress)
		require.NotNil(t, result.SuggestedAction)
	})

	t.Run("unusable reply routes to fallback", func(t *testing.T) {
		client := &stubClient{available: true, reply: "I am not sure what to do."}
		a := NewAnalyzer(client, cfg, logger)

		result := a.Analyze(context.Background(), testPageState(), "explore", nil)
		require.NotNil(t, result)
		require.NotNil(t, result.SuggestedAction)
	})

	t.Run("usable reply passes through the normalizer", func(t *testing.T) {
		client := &stubClient{available: true, reply: `{"currentPage": "Home", "progress": 100}`}
		a := NewAnalyzer(client, cfg, logger)

		result := a.Analyze(context.Background(), testPageState(), "explore", nil)
		require.NotNil(t, result)
		assert.Equal(t, "Home", result.CurrentPage)
		assert.Equal(t, 100, result.Progress)
	})

	t.Run("nil client routes to fallback", func(t *testing.T) {
		a := NewAnalyzer(nil, cfg, logger)
		result := a.Analyze(context.Background(), testPageState(), "explore", nil)
		require.NotNil(t, result)
		require.NotNil(t, result.SuggestedAction)
	})
}

func TestGeminiClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("missing api key reports unavailable", func(t *testing.T) {
		cfg := config.NewDefaultConfig().LLM
		cfg.APIKey = ""
		client := NewGeminiClient(cfg, logger)
		assert.False(t, client.Available())

		_, err := client.GenerateResponse(context.Background(), GenerationRequest{})
		assert.Error(t, err)
	})

	t.Run("successful generation returns first candidate text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "{\"progress\": 10}"}]}, "finishReason": "STOP"}]}`)
		}))
		defer server.Close()

		cfg := config.NewDefaultConfig().LLM
		cfg.APIKey = "test-key"
		cfg.Endpoint = server.URL
		cfg.RateLimit = 1000

		client := NewGeminiClient(cfg, logger)
		require.True(t, client.Available())

		reply, err := client.GenerateResponse(context.Background(), GenerationRequest{
			SystemPrompt: "system",
			UserPrompt:   "user",
			Options:      GenerationOptions{ForceJSONFormat: true},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"progress": 10}`, reply)
	})

	t.Run("permanent API errors are not retried", func(t *testing.T) {
		var hits int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer server.Close()

		cfg := config.NewDefaultConfig().LLM
		cfg.APIKey = "test-key"
		cfg.Endpoint = server.URL
		cfg.RateLimit = 1000

		client := NewGeminiClient(cfg, logger)
		_, err := client.GenerateResponse(context.Background(), GenerationRequest{})
		require.Error(t, err)
		assert.Equal(t, 1, hits)
	})

	t.Run("transient errors retry until success", func(t *testing.T) {
		var hits int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			if hits < 3 {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "ok"}]}, "finishReason": "STOP"}]}`)
		}))
		defer server.Close()

		cfg := config.NewDefaultConfig().LLM
		cfg.APIKey = "test-key"
		cfg.Endpoint = server.URL
		cfg.RateLimit = 1000

		client := NewGeminiClient(cfg, logger)
		reply, err := client.GenerateResponse(context.Background(), GenerationRequest{})
		require.NoError(t, err)
		assert.Equal(t, "ok", reply)
		assert.Equal(t, 3, hits)
	})
}
