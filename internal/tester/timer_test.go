package tester

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCancelable / fakeScheduler let tests fire a timer's callback on
// demand instead of waiting on a real clock.
type fakeCancelable struct {
	stopped bool
}

func (c *fakeCancelable) Stop() bool {
	already := c.stopped
	c.stopped = true
	return !already
}

type fakeScheduler struct {
	mu      sync.Mutex
	armed   []fakeArm
}

type fakeArm struct {
	d       time.Duration
	f       func()
	handle  *fakeCancelable
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Cancelable {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &fakeCancelable{}
	s.armed = append(s.armed, fakeArm{d: d, f: f, handle: h})
	return h
}

// fireLast invokes the most recently armed, not-yet-stopped callback.
func (s *fakeScheduler) fireLast() {
	s.mu.Lock()
	arm := s.armed[len(s.armed)-1]
	s.mu.Unlock()
	if !arm.handle.stopped {
		arm.f()
	}
}

func TestTimer_StartAndFire(t *testing.T) {
	sched := &fakeScheduler{}
	fired := make(chan struct{}, 1)

	timer := NewTimer("test_response_timeout", sched, func() { fired <- struct{}{} })
	timer.Start(5 * time.Second)

	assert.True(t, timer.IsRunning())
	sched.fireLast()

	select {
	case <-fired:
	case <-timeoutCh(t):
		t.Fatal("onExpire was not invoked")
	}
	assert.False(t, timer.IsRunning())
}

func TestTimer_StopPreventsFire(t *testing.T) {
	sched := &fakeScheduler{}
	fired := false

	timer := NewTimer("settling_delay", sched, func() { fired = true })
	timer.Start(5 * time.Second)
	timer.Stop()

	sched.fireLast()
	assert.False(t, fired)
	assert.False(t, timer.IsRunning())
}

func TestTimer_RestartReplacesPendingExpiry(t *testing.T) {
	sched := &fakeScheduler{}
	var calls int

	timer := NewTimer("test_interval", sched, func() { calls++ })
	timer.Start(1 * time.Second)
	timer.Start(2 * time.Second) // re-arm before the first ever fires

	require.Len(t, sched.armed, 2)
	assert.True(t, sched.armed[0].handle.stopped, "restarting must stop the previous handle")

	sched.fireLast()
	assert.Equal(t, 1, calls)
}

func TestTimer_RemainingClampsToZero(t *testing.T) {
	timer := NewTimer("label", &fakeScheduler{}, func() {})
	assert.Equal(t, time.Duration(0), timer.Remaining())
}
