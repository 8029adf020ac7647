// internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

const (
	// elementTimeout bounds waits on individual elements so a missing
	// selector fails the step instead of hanging the run.
	elementTimeout = 5 * time.Second
	// waitCeiling caps wait actions regardless of the requested duration.
	waitCeiling = 10 * time.Second
)

// Execute performs a single action against the page and reports the outcome.
// Failures are returned as data in the ActionResult; retry policy belongs to
// the caller.
func (s *Session) Execute(ctx context.Context, action schemas.Action) schemas.ActionResult {
	if err := action.Validate(); err != nil {
		return schemas.ActionResult{Success: false, Error: err.Error()}
	}

	s.logger.Debug("Executing action", zap.String("action", action.Describe()))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	var err error
	switch action.Type {
	case schemas.ActionClick:
		err = s.execClick(opCtx, action)
	case schemas.ActionTypeText:
		err = s.execType(opCtx, action)
	case schemas.ActionScroll:
		err = s.execScroll(opCtx, action)
	case schemas.ActionWait:
		err = s.execWait(opCtx, action)
	case schemas.ActionNavigate:
		err = s.Navigate(opCtx, action.URL)
	case schemas.ActionHover:
		err = s.execHover(opCtx, action)
	case schemas.ActionPressKey:
		err = s.execPressKey(opCtx, action)
	case schemas.ActionSelect:
		err = s.execSelect(opCtx, action)
	case schemas.ActionClear:
		err = s.execClear(opCtx, action)
	case schemas.ActionScreenshot:
		// The orchestrator captures screenshots as part of its step
		// snapshot; standalone screenshot actions are a no-op success.
		err = nil
	default:
		err = fmt.Errorf("unknown action type %q", action.Type)
	}

	if err != nil {
		return schemas.ActionResult{Success: false, Error: err.Error()}
	}
	return schemas.ActionResult{Success: true}
}

func (s *Session) execClick(ctx context.Context, action schemas.Action) error {
	clickCtx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()

	if action.Selector != "" {
		tasks := chromedp.Tasks{
			chromedp.ScrollIntoView(action.Selector, chromedp.ByQuery),
			chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
			chromedp.Click(action.Selector, chromedp.ByQuery),
		}
		if err := chromedp.Run(clickCtx, tasks); err != nil {
			return fmt.Errorf("click failed for selector %q: %w", action.Selector, err)
		}
		return nil
	}

	if action.Position != nil {
		err := chromedp.Run(clickCtx, chromedp.MouseClickXY(action.Position.X, action.Position.Y))
		if err != nil {
			return fmt.Errorf("click failed at (%.0f, %.0f): %w", action.Position.X, action.Position.Y, err)
		}
		return nil
	}

	// Text-targeted click: find a clickable element whose text matches.
	return s.clickByText(clickCtx, action.Text)
}

// clickByText locates an interactive element by its visible text and clicks
// it via coordinates, so elements without stable selectors stay reachable.
func (s *Session) clickByText(ctx context.Context, text string) error {
	script := fmt.Sprintf(`(() => {
  const wanted = %q.trim().toLowerCase();
  const candidates = document.querySelectorAll("a,button,[role='button'],input[type='submit'],input[type='button'],label,summary");
  for (const el of candidates) {
    const t = (el.innerText || el.value || "").trim().toLowerCase();
    if (t === wanted || (wanted.length > 3 && t.includes(wanted))) {
      const rect = el.getBoundingClientRect();
      if (rect.width > 0 && rect.height > 0) {
        return {x: rect.left + rect.width / 2, y: rect.top + rect.height / 2};
      }
    }
  }
  return null;
})()`, text)

	var pos *schemas.Point
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &pos)); err != nil {
		return fmt.Errorf("text lookup failed for %q: %w", text, err)
	}
	if pos == nil {
		return fmt.Errorf("no clickable element with text %q", text)
	}
	if err := chromedp.Run(ctx, chromedp.MouseClickXY(pos.X, pos.Y)); err != nil {
		return fmt.Errorf("click failed for text %q: %w", text, err)
	}
	return nil
}

func (s *Session) execType(ctx context.Context, action schemas.Action) error {
	typeCtx, cancel := context.WithTimeout(ctx, elementTimeout+time.Duration(len(action.Text)*20)*time.Millisecond)
	defer cancel()

	if action.Selector != "" {
		tasks := chromedp.Tasks{
			chromedp.ScrollIntoView(action.Selector, chromedp.ByQuery),
			chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
			chromedp.SendKeys(action.Selector, action.Text, chromedp.ByQuery),
		}
		if err := chromedp.Run(typeCtx, tasks); err != nil {
			return fmt.Errorf("type failed for selector %q: %w", action.Selector, err)
		}
		return nil
	}

	// No selector: type into the currently focused element.
	if err := chromedp.Run(typeCtx, input.InsertText(action.Text)); err != nil {
		return fmt.Errorf("type into focused element failed: %w", err)
	}
	return nil
}

func (s *Session) execScroll(ctx context.Context, action schemas.Action) error {
	var script string
	switch strings.ToLower(action.Direction) {
	case "up":
		script = `window.scrollBy({top: -window.innerHeight * 0.8, behavior: 'instant'});`
	case "top":
		script = `window.scrollTo({top: 0, behavior: 'instant'});`
	case "bottom":
		script = `window.scrollTo({top: document.body.scrollHeight, behavior: 'instant'});`
	case "", "down":
		script = `window.scrollBy({top: window.innerHeight * 0.8, behavior: 'instant'});`
	default:
		return fmt.Errorf("invalid scroll direction %q (supported: up, down, top, bottom)", action.Direction)
	}

	scrollCtx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()

	if err := chromedp.Run(scrollCtx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (s *Session) execWait(ctx context.Context, action schemas.Action) error {
	duration := time.Duration(action.Duration) * time.Millisecond
	if duration <= 0 {
		duration = 500 * time.Millisecond
	}
	if duration > waitCeiling {
		duration = waitCeiling
	}

	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) execHover(ctx context.Context, action schemas.Action) error {
	hoverCtx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.ScrollIntoView(action.Selector, chromedp.ByQuery),
		chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
		// chromedp has no first-class hover; dispatch the events directly.
		chromedp.Evaluate(fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  for (const type of ["mouseover", "mouseenter", "mousemove"]) {
    el.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
  }
  return true;
})()`, action.Selector), nil),
	}
	if err := chromedp.Run(hoverCtx, tasks); err != nil {
		return fmt.Errorf("hover failed for selector %q: %w", action.Selector, err)
	}
	return nil
}

func (s *Session) execPressKey(ctx context.Context, action schemas.Action) error {
	keyCtx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()

	key := resolveKey(action.Key)
	if err := chromedp.Run(keyCtx, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("press_key failed for %q: %w", action.Key, err)
	}
	return nil
}

// resolveKey maps common key names onto chromedp's key codes; single
// characters pass through unchanged.
func resolveKey(name string) string {
	switch strings.ToLower(name) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape", "esc":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	case "delete":
		return kb.Delete
	case "arrowup", "up":
		return kb.ArrowUp
	case "arrowdown", "down":
		return kb.ArrowDown
	case "arrowleft", "left":
		return kb.ArrowLeft
	case "arrowright", "right":
		return kb.ArrowRight
	case "home":
		return kb.Home
	case "end":
		return kb.End
	case "pageup":
		return kb.PageUp
	case "pagedown":
		return kb.PageDown
	default:
		return name
	}
}

func (s *Session) execSelect(ctx context.Context, action schemas.Action) error {
	selCtx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
		chromedp.SetValue(action.Selector, action.Value, chromedp.ByQuery),
	}
	if err := chromedp.Run(selCtx, tasks); err != nil {
		return fmt.Errorf("select failed for selector %q: %w", action.Selector, err)
	}
	return nil
}

func (s *Session) execClear(ctx context.Context, action schemas.Action) error {
	clearCtx, cancel := context.WithTimeout(ctx, elementTimeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.WaitVisible(action.Selector, chromedp.ByQuery),
		chromedp.Clear(action.Selector, chromedp.ByQuery),
	}
	if err := chromedp.Run(clearCtx, tasks); err != nil {
		return fmt.Errorf("clear failed for selector %q: %w", action.Selector, err)
	}
	return nil
}
