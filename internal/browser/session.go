// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/config"
	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// Session is one browser tab with event listeners attached. It accumulates
// page errors, console warnings/errors, and failed network requests in
// buffers between state captures; DrainBuffers hands them over exactly once.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose   func()
	closeOnce sync.Once

	// -- Event buffers; guarded by mu, cleared on drain --
	mu             sync.Mutex
	pageErrors     []schemas.PageError
	consoleLogs    []schemas.ConsoleMessage
	failedRequests []schemas.FailedRequest
	// requestMeta maps in-flight request IDs to URL/method so loading
	// failures can be attributed.
	requestMeta map[network.RequestID]requestInfo
}

type requestInfo struct {
	url    string
	method string
}

// newSession creates a tab context off the allocator. attach must be called
// before use.
func newSession(allocatorCtx context.Context, logger *zap.Logger, cfg *config.Config, onClose func()) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(allocatorCtx)

	sessionID := uuid.New().String()
	s := &Session{
		id:      sessionID,
		ctx:     tabCtx,
		cancel:  cancel,
		logger:  logger.Named("session").With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		onClose: onClose,

		requestMeta: make(map[network.RequestID]requestInfo),
	}
	return s, nil
}

// attach materializes the tab, enables the CDP domains we listen on, and
// subscribes the event handler.
func (s *Session) attach(ctx context.Context) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	chromedp.ListenTarget(s.ctx, s.handleEvent)

	err := chromedp.Run(opCtx,
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
	)
	if err != nil {
		return fmt.Errorf("failed to enable CDP domains: %w", err)
	}

	s.logger.Debug("Session attached and listening for events.")
	return nil
}

// Context exposes the tab context for chromedp operations.
func (s *Session) Context() context.Context {
	return s.ctx
}

// handleEvent dispatches CDP events into the session buffers.
func (s *Session) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventExceptionThrown:
		s.handleExceptionThrown(e)
	case *runtime.EventConsoleAPICalled:
		s.handleConsoleAPICalled(e)
	case *log.EventEntryAdded:
		s.handleLogEntryAdded(e)
	case *network.EventRequestWillBeSent:
		s.handleRequestWillBeSent(e)
	case *network.EventLoadingFinished:
		s.handleLoadingFinished(e)
	case *network.EventLoadingFailed:
		s.handleLoadingFailed(e)
	}
}

func (s *Session) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The description usually carries the stack trace.
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageErrors = append(s.pageErrors, schemas.PageError{
		Message:   text,
		Timestamp: e.Timestamp.Time(),
	})
}

func (s *Session) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	level := string(e.Type)
	if level != "error" && level != "warning" {
		return
	}

	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleLogs = append(s.consoleLogs, schemas.ConsoleMessage{
		Level:     level,
		Text:      textBuilder.String(),
		Timestamp: e.Timestamp.Time(),
	})
}

func (s *Session) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	level := string(e.Entry.Level)
	if level != "error" && level != "warning" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleLogs = append(s.consoleLogs, schemas.ConsoleMessage{
		Level:     level,
		Text:      e.Entry.Text,
		Timestamp: e.Entry.Timestamp.Time(),
	})
}

func (s *Session) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestMeta[e.RequestID] = requestInfo{url: e.Request.URL, method: e.Request.Method}
}

func (s *Session) handleLoadingFinished(e *network.EventLoadingFinished) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requestMeta, e.RequestID)
}

func (s *Session) handleLoadingFailed(e *network.EventLoadingFailed) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.requestMeta[e.RequestID]
	delete(s.requestMeta, e.RequestID)

	// Deliberate cancellations (navigation away, aborted fetches) are not
	// page defects.
	if e.Canceled {
		return
	}

	s.failedRequests = append(s.failedRequests, schemas.FailedRequest{
		URL:       info.url,
		Method:    info.method,
		Failure:   e.ErrorText,
		Timestamp: e.Timestamp.Time(),
	})
}

// DrainBuffers returns everything accumulated since the previous drain and
// clears the buffers, so each event surfaces in exactly one capture.
func (s *Session) DrainBuffers() ([]schemas.PageError, []schemas.ConsoleMessage, []schemas.FailedRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := s.pageErrors
	console := s.consoleLogs
	failed := s.failedRequests

	s.pageErrors = nil
	s.consoleLogs = nil
	s.failedRequests = nil

	if errs == nil {
		errs = []schemas.PageError{}
	}
	if console == nil {
		console = []schemas.ConsoleMessage{}
	}
	if failed == nil {
		failed = []schemas.FailedRequest{}
	}
	return errs, console, failed
}

// Navigate loads the URL and waits for the page to stabilize.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.Network.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	if err := s.stabilize(opCtx); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Warn("Page stabilization failed after navigation (non-critical).", zap.Error(err))
	}

	return nil
}

const (
	networkIdleWindow = 500 * time.Millisecond
	networkIdlePoll   = 100 * time.Millisecond
)

// stabilize waits for the DOM to be ready, then for the network to go
// quiet, bounded by the post-load wait window.
func (s *Session) stabilize(ctx context.Context) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	budget := s.cfg.Network.PostLoadWait
	if budget <= 0 {
		budget = 1500 * time.Millisecond
	}
	return s.awaitNetworkIdle(ctx, budget)
}

// awaitNetworkIdle returns once no requests have been in flight for a full
// idle window. Pages with persistent traffic (websockets, long polls) never
// quiesce, so the budget caps the wait and the page is taken as-is.
func (s *Session) awaitNetworkIdle(ctx context.Context, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	var quiet time.Duration

	for {
		if s.inflightRequests() == 0 {
			quiet += networkIdlePoll
			if quiet >= networkIdleWindow {
				return nil
			}
		} else {
			quiet = 0
		}

		if time.Now().After(deadline) {
			s.logger.Debug("Network still active at end of post-load window.",
				zap.Int("inflight", s.inflightRequests()))
			return nil
		}

		select {
		case <-time.After(networkIdlePoll):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// inflightRequests counts requests that have been sent but not yet
// finished or failed.
func (s *Session) inflightRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requestMeta)
}

// Reset navigates to about:blank and clears the event buffers, isolating
// consecutive scenario runs on the same tab.
func (s *Session) Reset(ctx context.Context) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	resetCtx, cancel := context.WithTimeout(opCtx, 15*time.Second)
	defer cancel()

	if err := chromedp.Run(resetCtx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}

	s.DrainBuffers()
	s.mu.Lock()
	s.requestMeta = make(map[network.RequestID]requestInfo)
	s.mu.Unlock()
	return nil
}

// Close tears down the tab. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing session.")
		if s.cancel != nil {
			s.cancel()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
