package tester

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrisnisbet/iftesterd/internal/bus"
)

// Context bundles the daemon-wide dependencies every Interface needs: the
// shared bus connection and the directories probe/recovery executables are
// run from. §9 calls for both to be explicit, constructor-injected
// dependencies rather than module-level singletons.
type Context struct {
	Bus             bus.Bus
	TestDir         string
	RecoveryDir     string
	Scheduler       Scheduler
	MetricsAdjuster MetricsAdjuster
	Metrics         *Metrics
}

// MetricsAdjuster performs the optional route-metric penalty described in
// §4.6 / §6's adjust_metrics RPC. It is only called for interfaces with
// failing_tests_metrics_increase > 0; a nil MetricsAdjuster in Context
// turns the adjustment into a no-op.
type MetricsAdjuster interface {
	AdjustMetrics(ctx context.Context, interfaceName string, adjustment uint32) error
}

// BusMetricsAdjuster drives the adjust_metrics RPC named in §6.
type BusMetricsAdjuster struct {
	Bus bus.Bus
}

func (b BusMetricsAdjuster) AdjustMetrics(ctx context.Context, interfaceName string, adjustment uint32) error {
	req := bus.AdjustMetricsRequest{Adjustment: adjustment, Persist: true}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	rpcCtx, cancel := context.WithTimeout(ctx, bus.TesterRPCTimeout)
	defer cancel()
	method := fmt.Sprintf(bus.RPCAdjustMetricsFmt, interfaceName)
	_, err = b.Bus.Call(rpcCtx, method, payload)
	return err
}

// QueryLinkState asks the bus for the current up/down state of
// interfaceName, used by the Connection FSM at controller creation (§4.4).
// A failed or timed-out query is treated as "link is down" (§7, kind 2).
func (c *Context) QueryLinkState(ctx context.Context, interfaceName string) bool {
	rpcCtx, cancel := context.WithTimeout(ctx, bus.TesterRPCTimeout)
	defer cancel()

	method := fmt.Sprintf(bus.RPCInterfaceStatusFmt, interfaceName)
	reply, err := c.Bus.Call(rpcCtx, method, nil)
	if err != nil {
		return false
	}

	var status bus.InterfaceStatusReply
	if err := json.Unmarshal(reply, &status); err != nil {
		return false
	}
	return status.Up
}

// schedulerOrDefault returns c.Scheduler, falling back to RealScheduler.
func (c *Context) schedulerOrDefault() Scheduler {
	if c.Scheduler != nil {
		return c.Scheduler
	}
	return RealScheduler
}
