package tester

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// handleEvent is the single point of entry for every event reaching this
// Interface, called with mu held. It dispatches connection-bridging events
// directly and everything else to the Tester FSM's transition table (§4.5).
func (iface *Interface) handleEvent(ev Event) {
	switch ev.Kind {
	case EventLinkUp:
		iface.handleLinkUp()
	case EventLinkDown:
		iface.handleLinkDown()
	case EventSettlingDelayElapsed:
		iface.handleSettlingDelayElapsed()
	default:
		iface.handleTesterEvent(ev)
	}
}

// handleTesterEvent implements the transition table in §4.5. Any event not
// listed for the current state is logged and dropped, exactly as the table
// specifies.
func (iface *Interface) handleTesterEvent(ev Event) {
	switch iface.testerState {
	case TesterStopped:
		switch ev.Kind {
		case EventInterfaceSettled:
			iface.stats.resetPerConnection()
			iface.runTest(0)
		case EventRecoveryTaskEnded, EventRecoveryTaskTimedOut:
			// silently consumed (§4.5's explicit Stopped row).
		default:
			iface.dropUnexpected(ev)
		}

	case TesterSleeping:
		switch ev.Kind {
		case EventIntervalTimerElapsed:
			iface.runTest(0)
		case EventTestRunRequested:
			iface.testIntervalTimer.Stop()
			iface.runTest(0)
		case EventInterfaceDisconnected:
			iface.stopTester()
		default:
			iface.dropUnexpected(ev)
		}

	case TesterTesting:
		switch ev.Kind {
		case EventTestPassed:
			iface.testResponseTimer.Stop()
			iface.completeTest(true, ev.ExitCode)
		case EventTestFailed:
			iface.testResponseTimer.Stop()
			iface.completeTest(false, ev.ExitCode)
		case EventTestTimedOut:
			iface.testProc.Kill()
			iface.completeTest(false, execKilledExitCode)
		case EventInterfaceDisconnected:
			iface.stopTester()
		default:
			iface.dropUnexpected(ev)
		}

	case TesterRecovering:
		switch ev.Kind {
		case EventRecoveryTaskEnded:
			iface.recoveryResponseTimer.Stop()
			iface.enterSleeping()
		case EventRecoveryTaskTimedOut:
			iface.recoveryProc.Kill()
			iface.enterSleeping()
		case EventInterfaceDisconnected:
			// Recovery actions are deliberately not killed on disconnect; only
			// the test child (if any) is torn down (§4.5).
			iface.testProc.Kill()
			iface.testResponseTimer.Stop()
			iface.testIntervalTimer.Stop()
			iface.testerState = TesterStopped
			iface.testIndex = 0
		default:
			iface.dropUnexpected(ev)
		}
	}
}

func (iface *Interface) dropUnexpected(ev Event) {
	logging.Debug("TesterFSM", "interface %q: dropping %s in state %s", iface.Name, ev.Kind, iface.testerState)
}

// handleInterfaceSettled is the Connection FSM's entry action on reaching
// Connected (§4.4): emit INTERFACE_SETTLED to the Tester FSM.
func (iface *Interface) handleInterfaceSettled() {
	iface.handleTesterEvent(Event{Kind: EventInterfaceSettled})
}

// handleInterfaceDisconnected is the Connection FSM's entry action on
// reaching Disconnected from Connected (§4.4): emit INTERFACE_DISCONNECTED.
func (iface *Interface) handleInterfaceDisconnected() {
	iface.handleTesterEvent(Event{Kind: EventInterfaceDisconnected})
}

// stopTester implements I5: leaves no test timer running and no test child
// alive; the recovery timer/child are untouched.
func (iface *Interface) stopTester() {
	iface.testProc.Kill()
	iface.testResponseTimer.Stop()
	iface.testIntervalTimer.Stop()
	iface.testerState = TesterStopped
	iface.testIndex = 0
}

// runTest starts the test at index (§4.5.3) and enters Testing.
func (iface *Interface) runTest(index int) {
	if index < 0 || index >= len(iface.config.Tests) {
		logging.Warn("TesterFSM", "interface %q: runTest(%d) out of range", iface.Name, index)
		return
	}
	test := iface.config.Tests[index]

	iface.testerState = TesterTesting
	iface.testIndex = index

	timeoutSecs := test.ResponseTimeoutSecs
	if timeoutSecs == 0 {
		timeoutSecs = iface.config.ResponseTimeoutSecs
	}
	iface.testResponseTimer.Start(time.Duration(timeoutSecs) * time.Second)

	argv := buildActionArgv(iface.ctx.TestDir, iface.Name, test)
	iface.testProc.Start(argv, iface.ctx.TestDir)
}

func buildActionArgv(dir, interfaceName string, action ActionConfig) []string {
	path := filepath.Join(dir, action.ExecutableName)
	return []string{path, interfaceName, action.ExecutableName, string(action.Params)}
}

// onTestResponseTimeout fires on the test response timer's own goroutine.
func (iface *Interface) onTestResponseTimeout() {
	iface.queue.Enqueue(Event{Kind: EventTestTimedOut})
}

// onTestIntervalElapsed fires on the test interval timer's own goroutine.
func (iface *Interface) onTestIntervalElapsed() {
	iface.queue.Enqueue(Event{Kind: EventIntervalTimerElapsed})
}

// onTestProcessExit is the test ProcessRunner's completion callback. A
// killed child (the FSM's own doing, via timeout or Stop) reports nothing;
// the FSM has already moved on via the event that triggered the kill.
func (iface *Interface) onTestProcessExit(exitCode int, killed bool) {
	if killed {
		return
	}
	kind := EventTestFailed
	if exitCode == 0 {
		kind = EventTestPassed
	}
	iface.queue.Enqueue(Event{Kind: kind, ExitCode: exitCode})
}

// completeTest implements §4.5.1 (per-test accounting and chaining) and
// §4.5.2 (test-run completion). passed is this individual test's outcome;
// exitCode is recorded verbatim for the state dump's introspection fields.
func (iface *Interface) completeTest(passed bool, exitCode int) {
	if passed {
		iface.stats.Tests.TotalPasses++
		iface.stats.Tests.TotalPassesThisConnection++
	} else {
		iface.stats.Tests.TotalFailures++
		iface.stats.Tests.TotalFailuresThisConnection++
	}
	iface.lastTestPassed = passed
	iface.lastTestExitCode = exitCode

	numTests := len(iface.config.Tests)
	switch iface.config.SuccessCondition {
	case OneTestMustPass:
		if passed {
			iface.finishTestRun(true)
			return
		}
		if iface.testIndex+1 < numTests {
			iface.runTest(iface.testIndex + 1)
			return
		}
		iface.finishTestRun(false)

	case AllTestsMustPass:
		if passed {
			if iface.testIndex+1 < numTests {
				iface.runTest(iface.testIndex + 1)
				return
			}
			iface.finishTestRun(true)
			return
		}
		iface.finishTestRun(false)
	}
}

// finishTestRun implements §4.5.2: accounting, the test_run broadcast, the
// operational/broken transition, recovery dispatch, and the resulting
// Sleeping interval.
func (iface *Interface) finishTestRun(passed bool) {
	iface.testIndex = 0

	result := "fail"
	if passed {
		result = "pass"
	}
	iface.publishTestRun(result)
	if iface.ctx.Metrics != nil {
		iface.ctx.Metrics.TestRunsTotal.WithLabelValues(iface.Name, result).Inc()
	}

	if passed {
		iface.stats.TestRuns.ConsecutiveFailures = 0
		iface.stats.TestRuns.ConsecutivePasses++
		iface.stats.TestRuns.TotalPasses++
		iface.stats.TestRuns.TotalPassesThisConnection++

		if iface.classification == ClassificationBroken &&
			iface.stats.TestRuns.ConsecutivePasses == uint64(iface.config.PassThreshold) {
			iface.transitionToOperational()
		}
	} else {
		iface.stats.TestRuns.ConsecutivePasses = 0
		iface.stats.TestRuns.ConsecutiveFailures++
		iface.stats.TestRuns.TotalFailures++
		iface.stats.TestRuns.TotalFailuresThisConnection++

		// B1: fail_threshold == 0 means "act on every failure" — the guarded
		// short-circuit the source uses, preserved deliberately (§9).
		thresholdReached := iface.config.FailThreshold == 0 ||
			iface.stats.TestRuns.ConsecutiveFailures%uint64(iface.config.FailThreshold) == 0

		if thresholdReached {
			if iface.classification == ClassificationOperational {
				iface.transitionToBroken()
			}
			iface.maybeStartRecovery()
		}
	}

	if iface.testerState != TesterRecovering {
		iface.enterSleeping()
	}
}

func (iface *Interface) publishTestRun(result string) {
	if iface.ctx.Bus == nil {
		return
	}
	payload, err := json.Marshal(bus.TestRunEvent{Interface: iface.Name, Result: result})
	if err != nil {
		logging.Error("TesterFSM", err, "encoding test_run event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), bus.TesterRPCTimeout)
	defer cancel()
	if err := iface.ctx.Bus.Publish(ctx, bus.ChannelTesterTestRun, payload); err != nil {
		logging.Warn("TesterFSM", "interface %q: failed to publish test_run: %v", iface.Name, err)
	}
}

// enterSleeping implements the tail of §4.5.2: pick the interval based on
// current classification and consecutive-failure count, and enter Sleeping.
func (iface *Interface) enterSleeping() {
	iface.testerState = TesterSleeping

	var intervalSecs uint32
	if iface.classification == ClassificationOperational && iface.stats.TestRuns.ConsecutiveFailures == 0 {
		intervalSecs = iface.config.TestPassingIntervalSecs
	} else {
		intervalSecs = iface.config.TestFailingIntervalSecs
	}
	iface.testIntervalTimer.Start(time.Duration(intervalSecs) * time.Second)
}

// maybeStartRecovery implements the recovery-rotation half of §4.5.2: pick
// the next recovery action, advance the rotation, and start it if any
// recovery actions are configured (B2: none configured means no-op). The
// recovery counts and the Recovering transition are only applied if the
// child actually started; a spawn failure falls through to enterSleeping
// via finishTestRun's existing testerState check, matching the original's
// run_recovery_task-gated accounting.
func (iface *Interface) maybeStartRecovery() {
	numRecoverys := len(iface.config.RecoveryTasks)
	if numRecoverys == 0 {
		return
	}

	action := iface.config.RecoveryTasks[iface.recoveryIndex]
	iface.recoveryIndex = (iface.recoveryIndex + 1) % numRecoverys

	argv := buildActionArgv(iface.ctx.RecoveryDir, iface.Name, action)
	if !iface.recoveryProc.Start(argv, iface.ctx.RecoveryDir) {
		return
	}

	iface.testerState = TesterRecovering
	timeoutSecs := action.ResponseTimeoutSecs
	if timeoutSecs == 0 {
		timeoutSecs = iface.config.ResponseTimeoutSecs
	}
	iface.recoveryResponseTimer.Start(time.Duration(timeoutSecs) * time.Second)

	iface.stats.Recovery.Total++
	iface.stats.Recovery.TotalThisConnection++

	if iface.ctx.Metrics != nil {
		iface.ctx.Metrics.RecoveryStarts.WithLabelValues(iface.Name, action.Label).Inc()
	}
}

// onRecoveryResponseTimeout fires on the recovery response timer's goroutine.
func (iface *Interface) onRecoveryResponseTimeout() {
	iface.queue.Enqueue(Event{Kind: EventRecoveryTaskTimedOut})
}

// onRecoveryProcessExit is the recovery ProcessRunner's completion
// callback.
func (iface *Interface) onRecoveryProcessExit(exitCode int, killed bool) {
	if killed {
		return
	}
	iface.queue.Enqueue(Event{Kind: EventRecoveryTaskEnded, ExitCode: exitCode})
}
