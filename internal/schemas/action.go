// internal/schemas/action.go
package schemas

import (
	"fmt"
	"strings"
)

// ActionType enumerates the closed set of actions the agent can perform.
type ActionType string

const (
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionScroll     ActionType = "scroll"
	ActionWait       ActionType = "wait"
	ActionNavigate   ActionType = "navigate"
	ActionHover      ActionType = "hover"
	ActionPressKey   ActionType = "press_key"
	ActionSelect     ActionType = "select"
	ActionClear      ActionType = "clear"
	ActionScreenshot ActionType = "screenshot"
)

var validActionTypes = map[ActionType]struct{}{
	ActionClick:      {},
	ActionTypeText:   {},
	ActionScroll:     {},
	ActionWait:       {},
	ActionNavigate:   {},
	ActionHover:      {},
	ActionPressKey:   {},
	ActionSelect:     {},
	ActionClear:      {},
	ActionScreenshot: {},
}

// Valid reports whether the type is one of the closed set.
func (t ActionType) Valid() bool {
	_, ok := validActionTypes[t]
	return ok
}

// Point is a viewport coordinate used for position-targeted clicks.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Action is one step the agent performs against the page. It is a tagged
// union over Type; each variant reads only the fields it requires. The
// normalizer and the executor both validate variants independently.
type Action struct {
	Type     ActionType `json:"type"`
	Selector string     `json:"selector,omitempty"`
	Text     string     `json:"text,omitempty"`
	URL      string     `json:"url,omitempty"`
	Key      string     `json:"key,omitempty"`
	Value    string     `json:"value,omitempty"`
	// Direction is "up", "down", "top" or "bottom" for scroll actions.
	Direction string `json:"direction,omitempty"`
	// Duration is in milliseconds, for wait actions.
	Duration int    `json:"duration,omitempty"`
	Position *Point `json:"position,omitempty"`
	// Reason is the model's stated rationale; informational only.
	Reason string `json:"reason,omitempty"`
}

// Validate checks that the variant carries its required fields. A failed
// validation is always a local, reportable condition, never a panic.
func (a Action) Validate() error {
	switch a.Type {
	case ActionClick:
		if a.Selector == "" && a.Text == "" && a.Position == nil {
			return fmt.Errorf("click action requires a selector, text, or position")
		}
	case ActionTypeText:
		if a.Text == "" {
			return fmt.Errorf("type action requires text")
		}
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action requires a url")
		}
	case ActionHover, ActionClear:
		if a.Selector == "" {
			return fmt.Errorf("%s action requires a selector", a.Type)
		}
	case ActionPressKey:
		if a.Key == "" {
			return fmt.Errorf("press_key action requires a key")
		}
	case ActionSelect:
		if a.Selector == "" || a.Value == "" {
			return fmt.Errorf("select action requires a selector and a value")
		}
	case ActionScroll, ActionWait, ActionScreenshot:
		// No required fields; direction/duration carry defaults downstream.
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// Describe renders a short human description of the action, suitable for
// prompt history where full page states would blow up the prompt size.
func (a Action) Describe() string {
	switch a.Type {
	case ActionClick:
		if a.Selector != "" {
			return fmt.Sprintf("click %s", a.Selector)
		}
		if a.Text != "" {
			return fmt.Sprintf("click element with text %q", a.Text)
		}
		if a.Position != nil {
			return fmt.Sprintf("click at (%.0f, %.0f)", a.Position.X, a.Position.Y)
		}
		return "click"
	case ActionTypeText:
		target := a.Selector
		if target == "" {
			target = "focused element"
		}
		return fmt.Sprintf("type %q into %s", truncate(a.Text, 60), target)
	case ActionScroll:
		dir := a.Direction
		if dir == "" {
			dir = "down"
		}
		return "scroll " + dir
	case ActionWait:
		return fmt.Sprintf("wait %dms", a.Duration)
	case ActionNavigate:
		return "navigate to " + a.URL
	case ActionHover:
		return "hover over " + a.Selector
	case ActionPressKey:
		return "press key " + a.Key
	case ActionSelect:
		return fmt.Sprintf("select %q in %s", a.Value, a.Selector)
	case ActionClear:
		return "clear " + a.Selector
	case ActionScreenshot:
		return "take screenshot"
	default:
		return "unknown action " + string(a.Type)
	}
}

// ActionResult is the executor's verdict on one action. Failures are data,
// not errors; retry policy belongs to the orchestrator.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
