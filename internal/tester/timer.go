package tester

import (
	"sync"
	"time"
)

// Scheduler abstracts time.AfterFunc so tests can drive timers without real
// sleeps; production code uses realScheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Cancelable
}

// Cancelable is satisfied by *time.Timer.
type Cancelable interface {
	Stop() bool
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Cancelable {
	return time.AfterFunc(d, f)
}

// RealScheduler is the production Scheduler, backed by time.AfterFunc.
var RealScheduler Scheduler = realScheduler{}

// Timer is a named, one-shot timer with remaining-time introspection
// (§4.2). Expiry fires onExpire on whatever goroutine the Scheduler uses;
// callers are expected to route onExpire through the owning Interface's
// EventQueue so delivery lands on that interface's serialised dispatch.
type Timer struct {
	mu         sync.Mutex
	label      string
	scheduler  Scheduler
	onExpire   func()
	handle     Cancelable
	running    bool
	expiresAt  time.Time
	duration   time.Duration
	generation uint64
}

// NewTimer creates a stopped timer. label is used only for diagnostic dump
// output.
func NewTimer(label string, scheduler Scheduler, onExpire func()) *Timer {
	if scheduler == nil {
		scheduler = RealScheduler
	}
	return &Timer{label: label, scheduler: scheduler, onExpire: onExpire}
}

// Label returns the timer's diagnostic label.
func (t *Timer) Label() string {
	return t.label
}

// Start arms the timer for d, re-arming (replacing any pending expiry) if
// already running.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		t.handle.Stop()
	}
	t.generation++
	gen := t.generation
	t.duration = d
	t.expiresAt = time.Now().Add(d)
	t.running = true
	t.handle = t.scheduler.AfterFunc(d, func() { t.fire(gen) })
}

// fire only delivers onExpire if gen still matches the current arming: a
// fire callback already in flight when Start re-arms the timer belongs to
// the superseded arming and must not null out the new handle or deliver a
// spurious expiry for it.
func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.handle = nil
	onExpire := t.onExpire
	t.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}

// Stop disarms the timer. Safe to call when not running.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	t.running = false
}

// IsRunning reports whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Remaining returns the time left until expiry, or 0 if not running.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	if remaining := time.Until(t.expiresAt); remaining > 0 {
		return remaining
	}
	return 0
}
