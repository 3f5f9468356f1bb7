package tester

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// Registry holds the active set of Interfaces, keyed by name, and performs
// the keyed diff described in §4.7. Reloads are driven by Update/Flush:
// Update opens an update epoch and stages an entry; Flush closes the epoch
// and fires the add/update/remove actions. An entry whose name duplicates
// another staged in the same epoch silently overrides the earlier one.
type Registry struct {
	ctx *Context

	mu      sync.Mutex
	current map[string]*Interface

	staging map[string]InterfaceConfig
	staged  bool
}

// NewRegistry creates an empty registry bound to ctx.
func NewRegistry(ctx *Context) *Registry {
	return &Registry{ctx: ctx, current: make(map[string]*Interface)}
}

// Update opens (if necessary) an update epoch and stages name's new config.
func (r *Registry) Update(name string, config InterfaceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.staged {
		r.staging = make(map[string]InterfaceConfig)
		r.staged = true
	}
	r.staging[name] = config
}

// Flush closes the update epoch and applies the keyed diff against the
// previously active set: interfaces present only in staging are added,
// present in both are updated in place (restarted only if semantically
// different, §4.7), and present only in current are removed.
func (r *Registry) Flush(ctx context.Context) {
	r.mu.Lock()
	staging := r.staging
	r.staging = nil
	r.staged = false
	r.mu.Unlock()

	if staging == nil {
		staging = make(map[string]InterfaceConfig)
	}

	r.mu.Lock()
	var toAdd []string
	var toUpdate []string
	var toRemove []string
	for name := range staging {
		if _, exists := r.current[name]; exists {
			toUpdate = append(toUpdate, name)
		} else {
			toAdd = append(toAdd, name)
		}
	}
	for name := range r.current {
		if _, exists := staging[name]; !exists {
			toRemove = append(toRemove, name)
		}
	}
	r.mu.Unlock()

	for _, name := range toRemove {
		r.remove(name)
	}
	for _, name := range toUpdate {
		r.update(ctx, name, staging[name])
	}
	for _, name := range toAdd {
		r.add(ctx, name, staging[name])
	}
}

func (r *Registry) add(ctx context.Context, name string, config InterfaceConfig) {
	iface := NewInterface(r.ctx, name, config)

	r.mu.Lock()
	r.current[name] = iface
	r.mu.Unlock()

	iface.Begin(ctx)
	logging.Info("Registry", "interface %q added", name)
}

func (r *Registry) remove(name string) {
	r.mu.Lock()
	iface, ok := r.current[name]
	delete(r.current, name)
	r.mu.Unlock()

	if !ok {
		return
	}
	iface.Stop()
	logging.Info("Registry", "interface %q removed", name)
}

// update implements the §4.7 update rule: restart only on semantic change.
func (r *Registry) update(ctx context.Context, name string, newConfig InterfaceConfig) {
	r.mu.Lock()
	iface, ok := r.current[name]
	r.mu.Unlock()
	if !ok {
		return
	}

	iface.mu.Lock()
	changed := !iface.config.ConfigEqual(newConfig)
	iface.mu.Unlock()

	if !changed {
		return
	}

	iface.Stop()

	r.mu.Lock()
	replacement := NewInterface(r.ctx, name, newConfig)
	r.current[name] = replacement
	r.mu.Unlock()

	replacement.Begin(ctx)
	logging.Info("Registry", "interface %q restarted after config change", name)
}

// Lookup returns the named Interface, if present.
func (r *Registry) Lookup(name string) (*Interface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iface, ok := r.current[name]
	return iface, ok
}

// Names returns the currently active interface names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.current))
	for name := range r.current {
		names = append(names, name)
	}
	return names
}

// DispatchLinkEvent routes a bus network/link event to the named
// interface's Connection FSM, per §4.4's event classification.
func (r *Registry) DispatchLinkEvent(networkEvent *bus.NetworkInterfaceEvent, stateEvent *bus.InterfaceStateEvent) {
	switch {
	case networkEvent != nil && networkEvent.Action == "ifdown":
		if iface, ok := r.Lookup(networkEvent.Interface); ok {
			iface.LinkDown()
		}
	case stateEvent != nil && stateEvent.State == "ifup":
		if iface, ok := r.Lookup(stateEvent.Interface); ok {
			iface.LinkUp()
		}
	}
}

// DumpAll builds the daemon-level "state" RPC reply: the state dump of
// every interface, nested by name (§4.8).
func (r *Registry) DumpAll() map[string]StateDump {
	r.mu.Lock()
	names := make([]string, 0, len(r.current))
	ifaces := make([]*Interface, 0, len(r.current))
	for name, iface := range r.current {
		names = append(names, name)
		ifaces = append(ifaces, iface)
	}
	r.mu.Unlock()

	out := make(map[string]StateDump, len(names))
	for i, name := range names {
		out[name] = ifaces[i].Dump()
	}
	return out
}

// ErrDuplicateEntry is returned by callers that want to reject a config
// document with a duplicate interface name before it ever reaches Update;
// the registry itself resolves same-epoch duplicates silently per §4.7.
var ErrDuplicateEntry = fmt.Errorf("registry: duplicate interface name in same reload")
