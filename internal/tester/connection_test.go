package tester

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnection_LinkUpFromDisconnectedEntersSettling(t *testing.T) {
	iface, _, sched := newTestInterface(t, twoTestConfig())

	iface.LinkUp()

	assert.Equal(t, ConnectionSettling, iface.connectionState)
	assert.True(t, iface.settlingTimer.IsRunning())
	if assert.Len(t, sched.armed, 1) {
		assert.Equal(t, time.Duration(iface.config.SettlingDelaySecs)*time.Second, sched.armed[0].d)
	}
}

func TestConnection_LinkUpWhileAlreadySettlingIsIgnored(t *testing.T) {
	iface, _, sched := newTestInterface(t, twoTestConfig())

	iface.LinkUp()
	iface.LinkUp()

	assert.Equal(t, ConnectionSettling, iface.connectionState)
	assert.Len(t, sched.armed, 1, "a second link_up must not re-arm the settling timer")
}

func TestConnection_SettlingTimerElapsedEntersConnectedAndSettlesTester(t *testing.T) {
	iface, _, sched := newTestInterface(t, twoTestConfig())
	iface.LinkUp()

	sched.fireLast()

	assert.Equal(t, ConnectionConnected, iface.connectionState)
	assert.Equal(t, TesterTesting, iface.testerState, "INTERFACE_SETTLED must start the first test")
}

func TestConnection_LinkDownWhileSettlingStopsTimerWithoutCascading(t *testing.T) {
	iface, _, sched := newTestInterface(t, twoTestConfig())
	iface.LinkUp()

	iface.LinkDown()

	assert.Equal(t, ConnectionDisconnected, iface.connectionState)
	assert.False(t, iface.settlingTimer.IsRunning())
	assert.Equal(t, TesterStopped, iface.testerState, "no INTERFACE_DISCONNECTED should have been raised")

	// The stale settling timer firing afterward must be a no-op.
	sched.fireLast()
	assert.Equal(t, ConnectionDisconnected, iface.connectionState)
}

func TestConnection_LinkDownWhileConnectedCascadesToStopTester(t *testing.T) {
	iface, _, sched := newTestInterface(t, twoTestConfig())
	iface.LinkUp()
	sched.fireLast() // -> Connected, tester now Testing

	iface.LinkDown()

	assert.Equal(t, ConnectionDisconnected, iface.connectionState)
	assert.Equal(t, TesterStopped, iface.testerState)
	assert.False(t, iface.testIntervalTimer.IsRunning())
}

func TestConnection_LinkDownWhileAlreadyDisconnectedIsNoop(t *testing.T) {
	iface, _, _ := newTestInterface(t, twoTestConfig())

	iface.LinkDown()

	assert.Equal(t, ConnectionDisconnected, iface.connectionState)
}

func TestConnection_BeginQueriesLinkStateAndEntersSettling(t *testing.T) {
	iface, memBus, sched := newTestInterface(t, twoTestConfig())
	registerLinkStatus(t, memBus, iface.Name, true)

	iface.Begin(context.Background())

	assert.Equal(t, ConnectionSettling, iface.connectionState)
	assert.Len(t, sched.armed, 1)
}

func TestConnection_BeginWithLinkDownStaysDisconnected(t *testing.T) {
	iface, memBus, _ := newTestInterface(t, twoTestConfig())
	registerLinkStatus(t, memBus, iface.Name, false)

	iface.Begin(context.Background())

	assert.Equal(t, ConnectionDisconnected, iface.connectionState)
}

func TestConnection_BeginWithNoStatusHandlerTreatsLinkAsDown(t *testing.T) {
	// §7 kind 2: a failed/timed-out status query is treated as "down".
	iface, _, _ := newTestInterface(t, twoTestConfig())

	iface.Begin(context.Background())

	assert.Equal(t, ConnectionDisconnected, iface.connectionState)
}
