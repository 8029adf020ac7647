// internal/agent/main_test.go
package agent

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no goroutine outlives the orchestrator tests; the step
// loop and its timeouts must leave nothing behind once a run ends.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
