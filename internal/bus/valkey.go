package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// replyChannelPrefix namespaces the ephemeral per-call reply channels the
// ValkeyBus uses to emulate request/reply on top of Valkey's pub/sub
// primitive (Valkey itself has no native RPC verb).
const replyChannelPrefix = "bus.rpc.reply."

// requestChannelFmt is the channel a Call publishes its request envelope
// to; RegisterObject subscribes once per method name.
const requestChannelFmt = "bus.rpc.request.%s"

type rpcEnvelope struct {
	ReplyTo string          `json:"reply_to"`
	Args    json.RawMessage `json:"args"`
}

type rpcReply struct {
	Reply json.RawMessage `json:"reply,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ValkeyBus implements Bus over a Valkey connection, using native pub/sub
// for events and a request/reply envelope convention layered on pub/sub for
// RPCs.
type ValkeyBus struct {
	client valkey.Client

	mu      sync.Mutex
	objects map[string]map[string]MethodHandler
}

// NewValkeyBus dials addr (host:port) and returns a ready ValkeyBus.
func NewValkeyBus(addr string) (*ValkeyBus, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("bus: connecting to valkey at %s: %w", addr, err)
	}
	return &ValkeyBus{client: client, objects: make(map[string]map[string]MethodHandler)}, nil
}

func (v *ValkeyBus) Publish(ctx context.Context, channel string, payload []byte) error {
	cmd := v.client.B().Publish().Channel(channel).Message(string(payload)).Build()
	return v.client.Do(ctx, cmd).Error()
}

func (v *ValkeyBus) Subscribe(channel string, handler Handler) error {
	go func() {
		ctx := context.Background()
		cmd := v.client.B().Subscribe().Channel(channel).Build()
		err := v.client.Receive(ctx, cmd, func(msg valkey.PubSubMessage) {
			handler(ctx, []byte(msg.Message))
		})
		if err != nil {
			logging.Error("Bus", err, "subscription to %q ended", channel)
		}
	}()
	return nil
}

// Call publishes a request envelope on the method's request channel and
// waits on a private reply channel for a matching response, bounded by
// ctx's deadline (§5's RPC timeout values are the caller's responsibility
// to set on ctx).
func (v *ValkeyBus) Call(ctx context.Context, method string, args []byte) ([]byte, error) {
	replyChannel := replyChannelPrefix + uuid.NewString()

	replies := make(chan rpcReply, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		cmd := v.client.B().Subscribe().Channel(replyChannel).Build()
		_ = v.client.Receive(subCtx, cmd, func(msg valkey.PubSubMessage) {
			var r rpcReply
			if err := json.Unmarshal([]byte(msg.Message), &r); err != nil {
				return
			}
			select {
			case replies <- r:
			default:
			}
		})
	}()

	envelope, err := json.Marshal(rpcEnvelope{ReplyTo: replyChannel, Args: args})
	if err != nil {
		return nil, fmt.Errorf("bus: encoding rpc envelope: %w", err)
	}

	requestChannel := fmt.Sprintf(requestChannelFmt, method)
	if err := v.Publish(ctx, requestChannel, envelope); err != nil {
		return nil, fmt.Errorf("bus: publishing rpc request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
	case r := <-replies:
		if r.Error != "" {
			return nil, fmt.Errorf("bus: rpc %q failed: %s", method, r.Error)
		}
		return r.Reply, nil
	}
}

// RegisterObject subscribes to the request channel for every method and
// dispatches incoming requests to the matching handler, publishing the
// result back on the requester's reply channel.
func (v *ValkeyBus) RegisterObject(object string, methods map[string]MethodHandler) error {
	v.mu.Lock()
	v.objects[object] = methods
	v.mu.Unlock()

	for name := range methods {
		requestChannel := fmt.Sprintf(requestChannelFmt, name)
		if err := v.Subscribe(requestChannel, v.handleRequest(object, name)); err != nil {
			return err
		}
	}
	return nil
}

// handleRequest looks the handler up at request time, so an object removed
// by RemoveObject stops answering even though its subscription remains.
func (v *ValkeyBus) handleRequest(object, method string) Handler {
	return func(ctx context.Context, payload []byte) {
		var envelope rpcEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return
		}

		v.mu.Lock()
		handler := v.objects[object][method]
		v.mu.Unlock()
		if handler == nil {
			return
		}

		reply, err := handler(ctx, envelope.Args)
		r := rpcReply{}
		if err != nil {
			r.Error = err.Error()
		} else if encoded, encErr := encodeReply(reply); encErr != nil {
			r.Error = encErr.Error()
		} else {
			r.Reply = encoded
		}

		encoded, err := json.Marshal(r)
		if err != nil {
			logging.Error("Bus", err, "encoding rpc reply")
			return
		}
		if err := v.Publish(ctx, envelope.ReplyTo, encoded); err != nil {
			logging.Error("Bus", err, "publishing rpc reply")
		}
	}
}

func (v *ValkeyBus) RemoveObject(object string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.objects, object)
	return nil
}

func (v *ValkeyBus) Close() error {
	v.client.Close()
	return nil
}
