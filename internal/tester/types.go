// Package tester implements the per-interface connectivity control engine:
// the coupled connection, tester and recovery state machines, their event
// queue, timers and child-process lifecycle.
package tester

import "encoding/json"

// SuccessCondition selects how a multi-test test-run is scored.
type SuccessCondition string

const (
	OneTestMustPass  SuccessCondition = "one_test_must_pass"
	AllTestsMustPass SuccessCondition = "all_tests_must_pass"
)

// ConnectionState is the link-lifecycle state of an Interface.
type ConnectionState int

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionSettling
	ConnectionConnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionSettling:
		return "settling"
	case ConnectionConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// TesterState is the test-scheduling state of an Interface.
type TesterState int

const (
	TesterStopped TesterState = iota
	TesterSleeping
	TesterTesting
	TesterRecovering
)

func (s TesterState) String() string {
	switch s {
	case TesterStopped:
		return "stopped"
	case TesterSleeping:
		return "sleeping"
	case TesterTesting:
		return "testing"
	case TesterRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// RecoveryClassification is the operational/broken classification published
// to the bus; it is distinct from ConnectionState.
type RecoveryClassification int

const (
	ClassificationOperational RecoveryClassification = iota
	ClassificationBroken
)

func (c RecoveryClassification) String() string {
	switch c {
	case ClassificationOperational:
		return "operational"
	case ClassificationBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// ActionConfig is the shared shape of a test or recovery action entry:
// an executable invocation plus an opaque, byte-comparable params blob.
type ActionConfig struct {
	Index                 int
	ExecutableName        string
	Label                 string
	ResponseTimeoutSecs   uint32 // 0 means "use the interface default"
	Params                json.RawMessage
}

// Equal reports whether two action configs are equal for the purposes of
// the config registry's update-in-place diff (§4.7): same executable,
// label, per-item timeout, and byte-identical serialised params.
func (a ActionConfig) Equal(other ActionConfig) bool {
	if a.ExecutableName != other.ExecutableName ||
		a.Label != other.Label ||
		a.ResponseTimeoutSecs != other.ResponseTimeoutSecs {
		return false
	}
	return jsonRawEqual(a.Params, other.Params)
}

func jsonRawEqual(a, b json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// InterfaceConfig is the declarative parameters of one Interface Controller
// (spec.md §3's InterfaceConfig).
type InterfaceConfig struct {
	SuccessCondition             SuccessCondition
	SettlingDelaySecs            uint32
	TestPassingIntervalSecs      uint32
	TestFailingIntervalSecs      uint32
	PassThreshold                uint32
	FailThreshold                uint32
	ResponseTimeoutSecs          uint32
	FailingTestsMetricsIncrease  uint32
	Tests                        []ActionConfig
	RecoveryTasks                []ActionConfig
}

// ConfigEqual implements the scalar + positional-list comparison of §4.7.
func (c InterfaceConfig) ConfigEqual(other InterfaceConfig) bool {
	if c.SuccessCondition != other.SuccessCondition ||
		c.SettlingDelaySecs != other.SettlingDelaySecs ||
		c.TestPassingIntervalSecs != other.TestPassingIntervalSecs ||
		c.TestFailingIntervalSecs != other.TestFailingIntervalSecs ||
		c.PassThreshold != other.PassThreshold ||
		c.FailThreshold != other.FailThreshold ||
		c.ResponseTimeoutSecs != other.ResponseTimeoutSecs ||
		c.FailingTestsMetricsIncrease != other.FailingTestsMetricsIncrease {
		return false
	}
	return actionListEqual(c.Tests, other.Tests) && actionListEqual(c.RecoveryTasks, other.RecoveryTasks)
}

func actionListEqual(a, b []ActionConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// TestRunStatistics tracks outcomes of whole test-runs (§3 Statistics).
type TestRunStatistics struct {
	ConsecutivePasses            uint64
	TotalPassesThisConnection    uint64
	TotalPasses                  uint64
	ConsecutiveFailures          uint64
	TotalFailuresThisConnection  uint64
	TotalFailures                uint64
}

// TestStatistics tracks outcomes of individual test invocations.
type TestStatistics struct {
	TotalPassesThisConnection   uint64
	TotalPasses                 uint64
	TotalFailuresThisConnection uint64
	TotalFailures               uint64
}

// RecoveryStatistics counts recovery actions started.
type RecoveryStatistics struct {
	TotalThisConnection uint64
	Total               uint64
}

// Statistics bundles the three per-interface counter groups.
type Statistics struct {
	TestRuns TestRunStatistics
	Tests    TestStatistics
	Recovery RecoveryStatistics
}

// resetPerConnection clears the _this_connection counters; called on every
// Stopped -> Testing transition driven by INTERFACE_SETTLED (I6).
func (s *Statistics) resetPerConnection() {
	s.TestRuns.TotalPassesThisConnection = 0
	s.TestRuns.TotalFailuresThisConnection = 0
	s.Tests.TotalPassesThisConnection = 0
	s.Tests.TotalFailuresThisConnection = 0
	s.Recovery.TotalThisConnection = 0
}
