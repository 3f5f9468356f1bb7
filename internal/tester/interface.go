package tester

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// Interface is one independently scheduled controller: a stable name, a
// back-reference to the shared daemon Context, its InterfaceConfig, its
// EventQueue, and the three cooperating FSMs described in §4.4-§4.6.
//
// Every asynchronous source (timers, child-process exit, bus callbacks)
// reaches the interface only by calling queue.Enqueue; the queue's trampoline
// guarantees at most one goroutine is ever running dispatch for a given
// Interface at a time (§3's EventQueue invariant), so mu exists purely to
// let a concurrent "state" RPC read a consistent snapshot while dispatch is
// mid-flight, not to arbitrate between writers.
type Interface struct {
	Name string
	ctx  *Context

	mu     sync.Mutex
	config InterfaceConfig
	queue  *EventQueue

	connectionState ConnectionState
	settlingTimer   *Timer

	testerState       TesterState
	testIndex         int
	lastTestExitCode  int
	lastTestPassed    bool
	testResponseTimer *Timer
	testIntervalTimer *Timer
	testProc          *ProcessRunner

	classification        RecoveryClassification
	recoveryIndex         int
	recoveryResponseTimer *Timer
	recoveryProc          *ProcessRunner
	metricsAreAdjusted    bool

	stats Statistics
}

// NewInterface allocates a controller for name under ctx with the given
// config. It does not start anything; call Begin to do that (§4.6: an
// interface enters Operational unconditionally at begin()).
func NewInterface(ctx *Context, name string, config InterfaceConfig) *Interface {
	iface := &Interface{
		Name:           name,
		ctx:            ctx,
		config:         config,
		classification: ClassificationOperational,
	}
	iface.queue = NewEventQueue(name, iface.dispatch, iface.onQueueOverflow)
	iface.settlingTimer = NewTimer("settling_delay", ctx.schedulerOrDefault(), iface.onSettlingDelayElapsed)
	iface.testResponseTimer = NewTimer("test_response_timeout", ctx.schedulerOrDefault(), iface.onTestResponseTimeout)
	iface.testIntervalTimer = NewTimer("test_interval", ctx.schedulerOrDefault(), iface.onTestIntervalElapsed)
	iface.recoveryResponseTimer = NewTimer("recovery_response_timeout", ctx.schedulerOrDefault(), iface.onRecoveryResponseTimeout)
	iface.testProc = NewProcessRunner("test", iface.onTestProcessExit)
	iface.recoveryProc = NewProcessRunner("recovery", iface.onRecoveryProcessExit)
	return iface
}

func (iface *Interface) onQueueOverflow() {
	if iface.ctx.Metrics != nil {
		iface.ctx.Metrics.QueueOverflows.Inc()
	}
}

// dispatch is the EventQueue's Handler. It is only ever invoked by the
// queue's own drain loop, one event at a time.
func (iface *Interface) dispatch(ev Event) {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	iface.handleEvent(ev)
	iface.recordGauges()
}

func (iface *Interface) recordGauges() {
	if iface.ctx.Metrics == nil {
		return
	}
	operational := 0.0
	if iface.classification == ClassificationOperational {
		operational = 1.0
	}
	iface.ctx.Metrics.Operational.WithLabelValues(iface.Name).Set(operational)
	iface.ctx.Metrics.TesterState.WithLabelValues(iface.Name).Set(float64(iface.testerState))
}

// Begin publishes the interface's per-interface bus object, enters the
// Operational classification unconditionally (§4.6), and queries the
// current link state to drive the Connection FSM's initial transition.
func (iface *Interface) Begin(ctx context.Context) {
	iface.mu.Lock()
	iface.classification = ClassificationOperational
	iface.recoveryIndex = 0
	iface.mu.Unlock()

	objectName := fmt.Sprintf(bus.ObjectIfaceTesterMethodFmt, iface.Name)
	err := iface.ctx.Bus.RegisterObject(objectName, map[string]bus.MethodHandler{
		bus.MethodState: iface.handleStateRPC,
	})
	if err != nil {
		logging.Warn("Interface", "interface %q: failed to register bus object: %v", iface.Name, err)
	}

	if iface.ctx.QueryLinkState(ctx, iface.Name) {
		iface.queue.Enqueue(Event{Kind: EventLinkUp})
	}
}

// Stop tears the interface down: kills both children, stops every timer,
// removes its bus object, and empties its queue (§4.7's remove action, §5's
// "Interface destruction cancels everything it owns").
func (iface *Interface) Stop() {
	iface.mu.Lock()
	iface.settlingTimer.Stop()
	iface.testResponseTimer.Stop()
	iface.testIntervalTimer.Stop()
	iface.recoveryResponseTimer.Stop()
	iface.testProc.Kill()
	iface.recoveryProc.Kill()
	iface.testerState = TesterStopped
	iface.connectionState = ConnectionDisconnected
	iface.mu.Unlock()

	iface.queue.Cleanup()

	objectName := fmt.Sprintf(bus.ObjectIfaceTesterMethodFmt, iface.Name)
	_ = iface.ctx.Bus.RemoveObject(objectName)
}

// handleStateRPC answers the per-interface "state" bus method (§4.8).
func (iface *Interface) handleStateRPC(ctx context.Context, args []byte) (any, error) {
	return iface.Dump(), nil
}
