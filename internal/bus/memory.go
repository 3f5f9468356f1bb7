package bus

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Bus used by unit tests and single-binary demos.
// Publishes are delivered synchronously to all current subscribers on the
// publisher's goroutine, matching the real transport's "no retry, no
// buffering beyond delivery" semantics closely enough for testing FSM
// behaviour.
type Memory struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	objects     map[string]map[string]MethodHandler
}

// NewMemory constructs an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{
		subscribers: make(map[string][]Handler),
		objects:     make(map[string]map[string]MethodHandler),
	}
}

func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	handlers := append([]Handler(nil), m.subscribers[channel]...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, payload)
	}
	return nil
}

func (m *Memory) Subscribe(channel string, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[channel] = append(m.subscribers[channel], handler)
	return nil
}

func (m *Memory) Call(ctx context.Context, method string, args []byte) ([]byte, error) {
	m.mu.RLock()
	var handler MethodHandler
	for _, methods := range m.objects {
		if h, ok := methods[method]; ok {
			handler = h
			break
		}
	}
	m.mu.RUnlock()

	if handler == nil {
		return nil, fmt.Errorf("bus: no handler registered for method %q", method)
	}

	type result struct {
		reply []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := handler(ctx, args)
		encoded, encErr := encodeReply(reply)
		if encErr != nil && err == nil {
			err = encErr
		}
		done <- result{reply: encoded, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
	case r := <-done:
		return r.reply, r.err
	}
}

func (m *Memory) RegisterObject(object string, methods map[string]MethodHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object] = methods
	return nil
}

func (m *Memory) RemoveObject(object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, object)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
