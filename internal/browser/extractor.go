// internal/browser/extractor.go
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

// domSnapshotScript walks the visible DOM and returns a depth-limited tree
// plus the page URL and title in a single round trip. Depth is capped at 3
// and each node keeps at most 10 children so the snapshot stays small enough
// to feed into a prompt.
const domSnapshotScript = `(() => {
  const MAX_DEPTH = 3;
  const MAX_CHILDREN = 10;
  const SKIP = new Set(["SCRIPT", "STYLE", "NOSCRIPT", "META", "LINK", "TEMPLATE"]);

  const visible = (el) => {
    const style = window.getComputedStyle(el);
    if (!style || style.visibility === "hidden" || style.display === "none") return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 2 && rect.height > 2;
  };

  const directText = (el) => {
    let out = "";
    for (const node of el.childNodes) {
      if (node.nodeType === 3) out += node.textContent;
    }
    return out.trim().replace(/\s+/g, " ").slice(0, 200);
  };

  const capture = (el, depth) => {
    const rect = el.getBoundingClientRect();
    const node = {
      tag: (el.tagName || "div").toLowerCase(),
      rect: {
        x: Math.round(rect.left),
        y: Math.round(rect.top),
        width: Math.round(rect.width),
        height: Math.round(rect.height)
      }
    };
    if (el.id) node.id = el.id;
    if (el.classList && el.classList.length > 0) node.classes = Array.from(el.classList).slice(0, 8);
    const text = directText(el);
    if (text) node.text = text;
    if (el.tagName === "A" && el.href) node.href = String(el.href).slice(0, 300);
    if (el.placeholder) node.placeholder = String(el.placeholder).slice(0, 120);
    if (el.tagName === "INPUT" || el.tagName === "TEXTAREA" || el.tagName === "SELECT") {
      if (el.value) node.value = String(el.value).slice(0, 120);
      if (el.type) node.inputType = String(el.type);
      if (el.disabled) node.disabled = true;
    }
    if (el.tagName === "BUTTON" && el.disabled) node.disabled = true;

    if (depth < MAX_DEPTH) {
      const children = [];
      for (const child of el.children) {
        if (children.length >= MAX_CHILDREN) break;
        if (SKIP.has(child.tagName)) continue;
        if (!visible(child)) continue;
        children.push(capture(child, depth + 1));
      }
      if (children.length > 0) node.children = children;
    }
    return node;
  };

  return {
    url: String(window.location.href || ""),
    title: String(document.title || ""),
    dom: document.body ? capture(document.body, 0) : null
  };
})()`

// domSnapshot mirrors the object the snapshot script returns.
type domSnapshot struct {
	URL   string               `json:"url"`
	Title string               `json:"title"`
	DOM   *schemas.ElementNode `json:"dom"`
}

// CapturePageState snapshots the live page: DOM tree, URL, title, the
// drained event buffers, and optionally a screenshot. Serialization failures
// are returned as errors; there is no partial state.
func (s *Session) CapturePageState(ctx context.Context, withScreenshot bool) (*schemas.PageState, error) {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	capCtx, cancel := context.WithTimeout(opCtx, 15*time.Second)
	defer cancel()

	var snap domSnapshot
	if err := chromedp.Run(capCtx, chromedp.Evaluate(domSnapshotScript, &snap)); err != nil {
		return nil, fmt.Errorf("failed to capture page snapshot: %w", err)
	}

	state := &schemas.PageState{
		URL:        snap.URL,
		Title:      snap.Title,
		DOM:        snap.DOM,
		CapturedAt: time.Now(),
	}
	state.Errors, state.Console, state.FailedRequests = s.DrainBuffers()

	if withScreenshot {
		var buf []byte
		if err := chromedp.Run(capCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
			// A missing screenshot degrades the report, not the run.
			s.logger.Warn("Failed to capture screenshot.", zap.Error(err))
		} else {
			state.Screenshot = base64.StdEncoding.EncodeToString(buf)
		}
	}

	return state, nil
}
