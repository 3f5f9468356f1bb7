package tester

import (
	"testing"
	"time"
)

const (
	timeoutDuration = 2 * time.Second
	pollInterval    = 5 * time.Millisecond
)

// timeoutCh returns a channel that fires after timeoutDuration, for
// select-based deadlock detection in tests that exercise goroutine
// synchronisation directly rather than through require.Eventually.
func timeoutCh(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(timeoutDuration)
}
