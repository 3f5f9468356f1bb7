package tester

import (
	"context"
	"encoding/json"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// transitionToBroken implements the Operational -> Broken half of §4.6:
// emit the operational event and, when the metrics-adjustment feature is
// configured, bump the interface's route metrics.
func (iface *Interface) transitionToBroken() {
	iface.classification = ClassificationBroken
	iface.publishOperational(false)

	if iface.config.FailingTestsMetricsIncrease > 0 {
		iface.metricsAreAdjusted = true
		go iface.adjustMetrics(iface.config.FailingTestsMetricsIncrease)
	}
}

// transitionToOperational implements the Broken -> Operational half of
// §4.6, including I4's reset of recovery_index and any live adjustment.
func (iface *Interface) transitionToOperational() {
	iface.classification = ClassificationOperational
	iface.recoveryIndex = 0

	if iface.metricsAreAdjusted {
		iface.metricsAreAdjusted = false
		go iface.adjustMetrics(0)
	}

	iface.publishOperational(true)
}

// adjustMetrics runs on its own goroutine because bus RPCs must not block
// the dispatch loop (§5); a failure is logged and otherwise ignored (§7,
// kind 2 — bus transient failures are abandoned for this cycle, no retry).
func (iface *Interface) adjustMetrics(adjustment uint32) {
	if iface.ctx.MetricsAdjuster == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), bus.TesterRPCTimeout)
	defer cancel()
	if err := iface.ctx.MetricsAdjuster.AdjustMetrics(ctx, iface.Name, adjustment); err != nil {
		logging.Warn("RecoveryFSM", "interface %q: metric adjustment to %d failed: %v", iface.Name, adjustment, err)
	}
}

func (iface *Interface) publishOperational(isOperational bool) {
	if iface.ctx.Bus == nil {
		return
	}
	payload, err := json.Marshal(bus.OperationalEvent{Interface: iface.Name, IsOperational: isOperational})
	if err != nil {
		logging.Error("RecoveryFSM", err, "encoding operational event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), bus.TesterRPCTimeout)
	defer cancel()
	if err := iface.ctx.Bus.Publish(ctx, bus.ChannelTesterOperational, payload); err != nil {
		logging.Warn("RecoveryFSM", "interface %q: failed to publish operational event: %v", iface.Name, err)
	}
}
