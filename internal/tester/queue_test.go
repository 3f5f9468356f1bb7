package tester

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_DispatchesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []EventKind

	q := NewEventQueue("eth0", func(ev Event) {
		mu.Lock()
		got = append(got, ev.Kind)
		mu.Unlock()
	}, nil)

	q.Enqueue(Event{Kind: EventLinkUp})
	q.Enqueue(Event{Kind: EventSettlingDelayElapsed})
	q.Enqueue(Event{Kind: EventInterfaceSettled})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventLinkUp, EventSettlingDelayElapsed, EventInterfaceSettled}, got)
}

// TestEventQueue_ReentrantEnqueueDoesNotDeadlock verifies the trampoline
// property: a handler enqueuing a further event from within dispatch must
// not recurse into the handler, and must not deadlock.
func TestEventQueue_ReentrantEnqueueDoesNotDeadlock(t *testing.T) {
	var q *EventQueue
	var mu sync.Mutex
	var got []EventKind
	depth := 0

	q = NewEventQueue("eth0", func(ev Event) {
		mu.Lock()
		got = append(got, ev.Kind)
		d := depth
		mu.Unlock()

		if ev.Kind == EventLinkUp && d == 0 {
			mu.Lock()
			depth++
			mu.Unlock()
			q.Enqueue(Event{Kind: EventLinkDown})
		}
	}, nil)

	done := make(chan struct{})
	go func() {
		q.Enqueue(Event{Kind: EventLinkUp})
		close(done)
	}()

	select {
	case <-done:
	case <-timeoutCh(t):
		t.Fatal("Enqueue deadlocked on reentrant call")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventLinkUp, EventLinkDown}, got)
}

func TestEventQueue_OverflowInvokesCallbackAndDropsEvent(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var got []EventKind
	overflowed := 0

	q := NewEventQueue("eth0", func(ev Event) {
		select {
		case started <- struct{}{}:
			<-release
		default:
		}
		mu.Lock()
		got = append(got, ev.Kind)
		mu.Unlock()
	}, func() { overflowed++ })

	go q.Enqueue(Event{Kind: EventLinkUp})
	<-started

	for i := 0; i < queueBound+2; i++ {
		q.Enqueue(Event{Kind: EventLinkDown})
	}
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == queueBound+1 // the in-flight event plus queueBound buffered
	}, timeoutDuration, pollInterval)

	assert.Greater(t, overflowed, 0)
}

func TestEventQueue_CleanupEmptiesPendingBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var got []EventKind

	q := NewEventQueue("eth0", func(ev Event) {
		select {
		case started <- struct{}{}:
			<-release
		default:
		}
		mu.Lock()
		got = append(got, ev.Kind)
		mu.Unlock()
	}, nil)

	go q.Enqueue(Event{Kind: EventLinkUp})
	<-started

	q.Enqueue(Event{Kind: EventLinkDown})
	q.Cleanup()
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, timeoutDuration, pollInterval)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "test passed", EventTestPassed.String())
	assert.Equal(t, "recovery task ended", EventRecoveryTaskEnded.String())
}
