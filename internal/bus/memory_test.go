package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PublishDeliversToAllSubscribers(t *testing.T) {
	m := NewMemory()
	var mu sync.Mutex
	var gotA, gotB []byte

	require.NoError(t, m.Subscribe("ch", func(ctx context.Context, payload []byte) {
		mu.Lock()
		gotA = payload
		mu.Unlock()
	}))
	require.NoError(t, m.Subscribe("ch", func(ctx context.Context, payload []byte) {
		mu.Lock()
		gotB = payload
		mu.Unlock()
	}))

	require.NoError(t, m.Publish(context.Background(), "ch", []byte("hello")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("hello"), gotA)
	assert.Equal(t, []byte("hello"), gotB)
}

func TestMemory_PublishWithNoSubscribersIsNoop(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Publish(context.Background(), "nobody-home", []byte("x")))
}

func TestMemory_PublishOnlyReachesMatchingChannel(t *testing.T) {
	m := NewMemory()
	called := false
	require.NoError(t, m.Subscribe("a", func(ctx context.Context, payload []byte) { called = true }))

	require.NoError(t, m.Publish(context.Background(), "b", []byte("x")))

	assert.False(t, called)
}

func TestMemory_CallReturnsHandlerReply(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.RegisterObject("obj", map[string]MethodHandler{
		"greet": func(ctx context.Context, args []byte) (any, error) {
			return map[string]string{"hello": "world"}, nil
		},
	}))

	reply, err := m.Call(context.Background(), "greet", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(reply))
}

func TestMemory_CallWithRawBytesReplyPassesThrough(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.RegisterObject("obj", map[string]MethodHandler{
		"raw": func(ctx context.Context, args []byte) (any, error) {
			return []byte(`{"already":"json"}`), nil
		},
	}))

	reply, err := m.Call(context.Background(), "raw", nil)

	require.NoError(t, err)
	assert.Equal(t, `{"already":"json"}`, string(reply))
}

func TestMemory_CallPropagatesHandlerError(t *testing.T) {
	m := NewMemory()
	wantErr := errors.New("boom")
	require.NoError(t, m.RegisterObject("obj", map[string]MethodHandler{
		"fail": func(ctx context.Context, args []byte) (any, error) {
			return nil, wantErr
		},
	}))

	_, err := m.Call(context.Background(), "fail", nil)

	assert.ErrorIs(t, err, wantErr)
}

func TestMemory_CallWithUnknownMethodReturnsError(t *testing.T) {
	m := NewMemory()

	_, err := m.Call(context.Background(), "nope", nil)

	assert.Error(t, err)
}

func TestMemory_CallTimesOutOnSlowHandler(t *testing.T) {
	m := NewMemory()
	release := make(chan struct{})
	require.NoError(t, m.RegisterObject("obj", map[string]MethodHandler{
		"slow": func(ctx context.Context, args []byte) (any, error) {
			<-release
			return nil, nil
		},
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Call(ctx, "slow", nil)

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMemory_RemoveObjectStopsAnsweringItsMethods(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.RegisterObject("obj", map[string]MethodHandler{
		"m": func(ctx context.Context, args []byte) (any, error) { return nil, nil },
	}))

	require.NoError(t, m.RemoveObject("obj"))

	_, err := m.Call(context.Background(), "m", nil)
	assert.Error(t, err)
}

func TestMemory_CloseIsAlwaysNil(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Close())
}
