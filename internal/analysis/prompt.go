// internal/analysis/prompt.go
package analysis

import (
	"fmt"
	"strings"

	"github.com/kestrel-ux/kestrel/internal/schemas"
)

const systemPrompt = `You are an expert UX tester exploring a web application like a meticulous human would. On every turn you receive the current page state (URL, title, a pruned DOM tree, and any errors collected since the last step), the testing goal, and the actions taken so far.

Respond with a single JSON object, no surrounding prose, shaped exactly like this:
{
  "currentPage": "short description of the page you are on",
  "currentState": "what state the flow is in relative to the goal",
  "availableActions": ["short descriptions of plausible next actions"],
  "suggestedNextAction": {
    "type": "click|type|scroll|wait|navigate|hover|press_key|select|clear|screenshot",
    "selector": "CSS selector when targeting an element",
    "text": "text to type or visible text of a click target",
    "url": "for navigate",
    "key": "for press_key",
    "value": "for select",
    "direction": "up|down|top|bottom for scroll",
    "duration": 500,
    "reason": "why this action moves toward the goal"
  },
  "uxIssues": [
    {
      "id": "stable-kebab-case-id",
      "severity": "critical|major|minor|suggestion",
      "category": "usability|accessibility|performance|visual|functionality|error_handling|feedback|navigation",
      "title": "short title",
      "description": "what is wrong and how it hurts the user",
      "location": "where on the page",
      "suggestion": "how to fix it"
    }
  ],
  "progress": 0
}

Rules:
- progress is an integer 0-100 estimating completion of the goal; report 100 only when the goal is demonstrably achieved.
- Report every genuine UX defect you observe, including console errors and failed requests surfaced in the page state.
- Reuse the same issue id if you see the same defect again.
- suggestedNextAction may be null only when the goal is complete.`

// buildUserPrompt renders one turn's page state, goal, and history into the
// user message. History entries are short action descriptions, not full
// states, to bound prompt size.
func buildUserPrompt(state *schemas.PageState, goal string, history []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "GOAL: %s\n\n", goal)

	fmt.Fprintf(&b, "CURRENT PAGE\nURL: %s\nTitle: %s\n\n", state.URL, state.Title)

	b.WriteString("VISIBLE DOM (depth-limited):\n")
	b.WriteString(state.RenderDOM())
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("ACTIONS TAKEN SO FAR:\n")
		for i, h := range history {
			fmt.Fprintf(&b, "%d. %s\n", i+1, h)
		}
		b.WriteString("\n")
	}

	if len(state.Errors) > 0 {
		b.WriteString("UNCAUGHT PAGE ERRORS SINCE LAST STEP:\n")
		for _, e := range state.Errors {
			fmt.Fprintf(&b, "- %s\n", e.Message)
		}
		b.WriteString("\n")
	}

	if len(state.Console) > 0 {
		b.WriteString("CONSOLE WARNINGS/ERRORS SINCE LAST STEP:\n")
		for _, c := range state.Console {
			fmt.Fprintf(&b, "- [%s] %s\n", c.Level, c.Text)
		}
		b.WriteString("\n")
	}

	if len(state.FailedRequests) > 0 {
		b.WriteString("FAILED NETWORK REQUESTS SINCE LAST STEP:\n")
		for _, r := range state.FailedRequests {
			fmt.Fprintf(&b, "- %s %s: %s\n", r.Method, r.URL, r.Failure)
		}
		b.WriteString("\n")
	}

	if state.Screenshot != "" {
		b.WriteString("A screenshot of the current viewport is attached.\n\n")
	}

	b.WriteString("Analyze the page against the goal and reply with the JSON object.")
	return b.String()
}
