// internal/schemas/pagestate.go
package schemas

import (
	"fmt"
	"strings"
	"time"
)

// Rect is an element's layout box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementNode is one visible element in the depth-limited DOM capture.
// Type-specific attributes (href, placeholder, value, inputType, disabled)
// are populated only where they apply.
type ElementNode struct {
	Tag         string         `json:"tag"`
	ID          string         `json:"id,omitempty"`
	Classes     []string       `json:"classes,omitempty"`
	Text        string         `json:"text,omitempty"`
	Rect        Rect           `json:"rect"`
	Href        string         `json:"href,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Value       string         `json:"value,omitempty"`
	InputType   string         `json:"inputType,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	Children    []*ElementNode `json:"children,omitempty"`
}

// PageError is one uncaught exception drained from the page.
type PageError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsoleMessage is one error/warning console line drained from the page.
type ConsoleMessage struct {
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FailedRequest is one failed network request drained from the page.
type FailedRequest struct {
	URL       string    `json:"url"`
	Method    string    `json:"method,omitempty"`
	Failure   string    `json:"failure"`
	Timestamp time.Time `json:"timestamp"`
}

// PageState is an ephemeral snapshot of the live page, recreated every step.
// The three error buffers carry everything accumulated since the previous
// snapshot; draining them resets the underlying buffers, so each event is
// reported in exactly one PageState.
type PageState struct {
	URL            string           `json:"url"`
	Title          string           `json:"title"`
	DOM            *ElementNode     `json:"dom,omitempty"`
	Errors         []PageError      `json:"errors"`
	Console        []ConsoleMessage `json:"console"`
	FailedRequests []FailedRequest  `json:"failedRequests"`
	Screenshot     string           `json:"screenshot,omitempty"`
	CapturedAt     time.Time        `json:"capturedAt"`
}

// HasErrors reports whether any of the drained buffers carried events.
func (p *PageState) HasErrors() bool {
	return len(p.Errors) > 0 || len(p.Console) > 0 || len(p.FailedRequests) > 0
}

// RenderDOM produces an indented textual rendering of the captured tree,
// compact enough for a prompt.
func (p *PageState) RenderDOM() string {
	if p.DOM == nil {
		return "(no DOM captured)"
	}
	var b strings.Builder
	renderNode(&b, p.DOM, 0)
	return strings.TrimRight(b.String(), "\n")
}

func renderNode(b *strings.Builder, n *ElementNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("<")
	b.WriteString(n.Tag)
	if n.ID != "" {
		fmt.Fprintf(b, " id=%q", n.ID)
	}
	if len(n.Classes) > 0 {
		fmt.Fprintf(b, " class=%q", strings.Join(n.Classes, " "))
	}
	if n.InputType != "" {
		fmt.Fprintf(b, " type=%q", n.InputType)
	}
	if n.Placeholder != "" {
		fmt.Fprintf(b, " placeholder=%q", n.Placeholder)
	}
	if n.Href != "" {
		fmt.Fprintf(b, " href=%q", n.Href)
	}
	if n.Value != "" {
		fmt.Fprintf(b, " value=%q", truncate(n.Value, 40))
	}
	if n.Disabled {
		b.WriteString(" disabled")
	}
	b.WriteString(">")
	if n.Text != "" {
		b.WriteString(" ")
		b.WriteString(truncate(n.Text, 80))
	}
	b.WriteString("\n")
	for _, child := range n.Children {
		renderNode(b, child, depth+1)
	}
}
