package suite

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/Mohsinsiddi/w3probe/internal/amount"
	"go.uber.org/zap"
)

// T collects assertion outcomes for one action. Failed assertions are
// logged and recorded; they never stop the action.
type T struct {
	mu       sync.Mutex
	failures []string
	decimals uint8
	log      *zap.Logger
}

func newT(log *zap.Logger, decimals uint8) *T {
	return &T{log: log, decimals: decimals}
}

// True records a failure when v is false.
func (t *T) True(v bool, msg string) bool {
	if !v {
		t.fail(msg)
	}
	return v
}

// Eq records a failure unless actual == expected exactly.
func (t *T) Eq(actual, expected *big.Int, msg string) bool {
	if amount.Equal(actual, expected) {
		return true
	}
	t.fail(fmt.Sprintf("%s: got %s, want %s", msg, t.show(actual), t.show(expected)))
	return false
}

// Logf writes an informational line to the action log.
func (t *T) Logf(format string, args ...interface{}) {
	t.log.Info(fmt.Sprintf(format, args...))
}

// Failed reports whether any assertion failed.
func (t *T) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures) > 0
}

// Failures returns the recorded failure messages in order.
func (t *T) Failures() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.failures...)
}

func (t *T) fail(msg string) {
	t.mu.Lock()
	t.failures = append(t.failures, msg)
	t.mu.Unlock()
	t.log.Error("assertion failed", zap.String("detail", msg))
}

func (t *T) show(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", v.String(), amount.Format(v, t.decimals))
}
