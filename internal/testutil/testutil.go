package testutil

import (
	"os"
	"sync"
	"testing"
	"time"
)

// SkipUnlessEnv skips the test unless the given env var equals the wanted value.
func SkipUnlessEnv(t *testing.T, key, want string) {
	t.Helper()
	if os.Getenv(key) != want {
		t.Skipf("skipped: set %s=%s to run", key, want)
	}
}

// IsCI reports whether running under common CI environments.
func IsCI() bool {
	if os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true" {
		return true
	}
	return false
}

// WaitUntil polls cond every millisecond until it returns true or the
// timeout elapses, then fails the test. Use it for background-goroutine
// effects instead of fixed sleeps.
func WaitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for: %s", timeout, msg)
}

// CollectingHandler records every error it receives so tests can assert on
// what was reported. Satisfies the voice manager's ErrorHandler interface.
type CollectingHandler struct {
	mu   sync.Mutex
	errs []error
}

// HandleError appends the error to the collected list.
func (h *CollectingHandler) HandleError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

// Errors returns a copy of all collected errors.
func (h *CollectingHandler) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]error, len(h.errs))
	copy(out, h.errs)
	return out
}

// Count returns how many errors have been collected.
func (h *CollectingHandler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

// Last returns the most recently collected error, or nil.
func (h *CollectingHandler) Last() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.errs) == 0 {
		return nil
	}
	return h.errs[len(h.errs)-1]
}

// Reset discards all collected errors.
func (h *CollectingHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = nil
}
