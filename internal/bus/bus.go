// Package bus defines the abstract IPC transport the daemon and the
// configurator use to exchange events and RPCs, plus two concrete
// implementations: an in-process Memory bus for tests and single-binary
// demos, and a Valkey-backed bus for real deployments.
package bus

import (
	"context"
	"time"
)

// Default RPC timeouts (§5): the tester's own bus calls (link-state query,
// metric adjustment) use TesterRPCTimeout; the configurator's calls into
// the daemon use the shorter ConfiguratorRPCTimeout.
const (
	TesterRPCTimeout       = 5 * time.Second
	ConfiguratorRPCTimeout = 1 * time.Second
)

// Handler processes one inbound pub/sub event. Implementations MUST NOT
// block; events normally end up enqueued on an Interface's EventQueue.
type Handler func(ctx context.Context, payload []byte)

// MethodHandler answers one inbound RPC, returning a JSON-encodable reply
// or an error.
type MethodHandler func(ctx context.Context, args []byte) (reply any, err error)

// Bus is the abstract transport described at its interface by spec §6. All
// methods must be safe for concurrent use; the core otherwise treats the
// bus as a single shared serial resource (§5).
type Bus interface {
	// Publish broadcasts payload (already JSON-encoded) on channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers handler for every message published on channel.
	// Subscriptions are cumulative; there is no Unsubscribe because the
	// daemon's subscriptions are fixed for its lifetime.
	Subscribe(channel string, handler Handler) error

	// Call performs a synchronous RPC against method, with the given
	// timeout bound by the caller (TesterRPCTimeout / ConfiguratorRPCTimeout
	// are the reference values from §5). Returns ErrTimeout-wrapping errors
	// on expiry.
	Call(ctx context.Context, method string, args []byte) (reply []byte, err error)

	// RegisterObject exposes a named RPC object with its methods. Used to
	// publish interface.tester, interface.tester.interface.<name> and, on
	// the configurator side, nothing (it is a pure caller).
	RegisterObject(object string, methods map[string]MethodHandler) error

	// RemoveObject un-publishes a previously registered object (§4.7's
	// Interface removal tears down its per-interface bus object).
	RemoveObject(object string) error

	// Close releases the underlying transport connection.
	Close() error
}
