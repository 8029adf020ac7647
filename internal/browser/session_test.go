// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// newBufferSession builds a Session with only the buffer machinery, no
// browser attached.
func newBufferSession() *Session {
	return &Session{
		logger:      zap.NewNop(),
		requestMeta: make(map[network.RequestID]requestInfo),
	}
}

func TestDrainBuffers(t *testing.T) {
	t.Run("returns accumulated events and clears buffers", func(t *testing.T) {
		s := newBufferSession()
		s.pageErrors = append(s.pageErrors, schemas.PageError{Message: "TypeError: x is undefined", Timestamp: time.Now()})
		s.consoleLogs = append(s.consoleLogs,
			schemas.ConsoleMessage{Level: "error", Text: "failed to load resource", Timestamp: time.Now()},
			schemas.ConsoleMessage{Level: "warning", Text: "deprecated API", Timestamp: time.Now()},
		)
		s.failedRequests = append(s.failedRequests, schemas.FailedRequest{URL: "http://localhost:3000/api", Failure: "net::ERR_CONNECTION_REFUSED", Timestamp: time.Now()})

		errs, console, failed := s.DrainBuffers()
		assert.Len(t, errs, 1)
		assert.Len(t, console, 2)
		assert.Len(t, failed, 1)

		// A second drain must come back empty: every event surfaces
		// exactly once.
		errs, console, failed = s.DrainBuffers()
		assert.Empty(t, errs)
		assert.Empty(t, console)
		assert.Empty(t, failed)
	})

	t.Run("empty buffers drain to non-nil slices", func(t *testing.T) {
		s := newBufferSession()
		errs, console, failed := s.DrainBuffers()
		require.NotNil(t, errs)
		require.NotNil(t, console)
		require.NotNil(t, failed)
		assert.Empty(t, errs)
		assert.Empty(t, console)
		assert.Empty(t, failed)
	})

	t.Run("events after a drain land in the next drain", func(t *testing.T) {
		s := newBufferSession()
		s.pageErrors = append(s.pageErrors, schemas.PageError{Message: "first"})
		s.DrainBuffers()

		s.pageErrors = append(s.pageErrors, schemas.PageError{Message: "second"})
		errs, _, _ := s.DrainBuffers()
		require.Len(t, errs, 1)
		assert.Equal(t, "second", errs[0].Message)
	})
}

func TestHandleLoadingFailed(t *testing.T) {
	t.Run("attributes failure to the tracked request", func(t *testing.T) {
		s := newBufferSession()
		s.requestMeta["req-1"] = requestInfo{url: "http://localhost:3000/api/projects", method: "POST"}

		s.handleLoadingFailed(&network.EventLoadingFailed{
			RequestID: "req-1",
			ErrorText: "net::ERR_CONNECTION_REFUSED",
		})

		_, _, failed := s.DrainBuffers()
		require.Len(t, failed, 1)
		assert.Equal(t, "http://localhost:3000/api/projects", failed[0].URL)
		assert.Equal(t, "POST", failed[0].Method)
		assert.Equal(t, "net::ERR_CONNECTION_REFUSED", failed[0].Failure)

		// The metadata entry is consumed.
		assert.Empty(t, s.requestMeta)
	})

	t.Run("ignores canceled requests", func(t *testing.T) {
		s := newBufferSession()
		s.handleLoadingFailed(&network.EventLoadingFailed{
			RequestID: "req-2",
			ErrorText: "net::ERR_ABORTED",
			Canceled:  true,
		})

		_, _, failed := s.DrainBuffers()
		assert.Empty(t, failed)
	})
}

func TestAwaitNetworkIdle(t *testing.T) {
	t.Run("quiet network returns after the idle window", func(t *testing.T) {
		s := newBufferSession()

		start := time.Now()
		err := s.awaitNetworkIdle(context.Background(), 5*time.Second)

		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second, "idle page must not wait out the full budget")
	})

	t.Run("persistent traffic is capped by the budget", func(t *testing.T) {
		s := newBufferSession()
		s.mu.Lock()
		s.requestMeta["req-poll"] = requestInfo{url: "http://localhost:3000/events", method: "GET"}
		s.mu.Unlock()

		start := time.Now()
		err := s.awaitNetworkIdle(context.Background(), 300*time.Millisecond)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	})

	t.Run("settles once in-flight requests complete", func(t *testing.T) {
		s := newBufferSession()
		s.mu.Lock()
		s.requestMeta["req-1"] = requestInfo{url: "http://localhost:3000/api", method: "GET"}
		s.mu.Unlock()

		go func() {
			time.Sleep(150 * time.Millisecond)
			s.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "req-1"})
		}()

		err := s.awaitNetworkIdle(context.Background(), 10*time.Second)

		require.NoError(t, err)
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		s := newBufferSession()
		s.mu.Lock()
		s.requestMeta["req-1"] = requestInfo{url: "http://localhost:3000/api", method: "GET"}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := s.awaitNetworkIdle(ctx, 10*time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestResolveKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"enter alias", "Enter", kb.Enter},
		{"escape alias", "esc", kb.Escape},
		{"tab", "Tab", kb.Tab},
		{"single character passthrough", "a", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveKey(tt.in))
		})
	}
}

func TestExecuteRejectsInvalidActions(t *testing.T) {
	s := newBufferSession()

	tests := []struct {
		name   string
		action schemas.Action
	}{
		{"click without target", schemas.Action{Type: schemas.ActionClick}},
		{"type without text", schemas.Action{Type: schemas.ActionTypeText}},
		{"navigate without url", schemas.Action{Type: schemas.ActionNavigate}},
		{"unknown type", schemas.Action{Type: "teleport"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Execute(context.Background(), tt.action)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
		})
	}
}
