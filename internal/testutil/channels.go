// Package testutil provides shared helpers for tests that wait on background work.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second
)

// pollStep is how often Eventually re-checks its condition.
const pollStep = 5 * time.Millisecond

// WaitForError waits for a value on errCh and returns it, failing the test
// after timeout. Use it for goroutines that report their exit error.
func WaitForError(t *testing.T, errCh <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		require.Fail(t, "timed out waiting for goroutine to exit")
		return nil
	}
}

// Eventually fails the test unless cond becomes true within timeout.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, timeout, pollStep, msg)
}
