package tester

// TimerDump is the read-only snapshot of one Timer (§4.8).
type TimerDump struct {
	Running   bool  `json:"running"`
	RemainingMs int64 `json:"remaining_ms"`
}

func dumpTimer(t *Timer) TimerDump {
	return TimerDump{
		Running:     t.IsRunning(),
		RemainingMs: t.Remaining().Milliseconds(),
	}
}

// ConnectionDump is the connection substate portion of the state dump.
type ConnectionDump struct {
	Connected bool      `json:"connected"`
	State     string    `json:"state"`
	Settling  TimerDump `json:"settling_delay_timer"`
}

// StatisticsDump mirrors Statistics for the wire format.
type StatisticsDump struct {
	TestRuns TestRunStatistics  `json:"test_runs"`
	Tests    TestStatistics     `json:"tests"`
	Recovery RecoveryStatistics `json:"recovery"`
}

// TesterDump is the tester substate portion of the state dump (§4.8).
type TesterDump struct {
	TestIndex             int       `json:"test_index"`
	State                 string    `json:"state"`
	OperationalState      string    `json:"operational_state"`
	MetricsAreAdjusted    bool      `json:"metrics_are_adjusted"`
	TestResponseTimeout   TimerDump `json:"test_response_timeout_timer"`
	TestInterval          TimerDump `json:"test_interval_timer"`
	RecoveryResponseTimeout TimerDump `json:"recovery_response_timeout_timer"`
	NextRecoveryTask      *int      `json:"next_recovery_task,omitempty"`
	NextRecoveryLabel     *string   `json:"next_recovery_label,omitempty"`
	TestProcessRunning    bool      `json:"test_process_running"`
	TestProcessPid        *int      `json:"test_process_pid,omitempty"`
	LastTestExitCode      int       `json:"last_test_exit_code"`
	LastTestPassed        bool      `json:"last_test_passed"`
	RecoveryTaskRunning   bool      `json:"recovery_task_running"`
	RecoveryTaskPid       *int      `json:"recovery_task_process_pid,omitempty"`
	Stats                 StatisticsDump `json:"stats"`
}

// ActionConfigDump mirrors one ActionConfig entry for the config echo.
type ActionConfigDump struct {
	Executable          string `json:"executable"`
	Label               string `json:"label"`
	ResponseTimeoutSecs uint32 `json:"response_timeout_secs"`
	Params              string `json:"params"`
}

// ConfigDump is a verbatim echo of the interface's active configuration
// (§4.8). Unlike the original dump code, PassThreshold and FailThreshold
// are emitted under their correct names — see DESIGN.md for the defect
// this corrects.
type ConfigDump struct {
	SuccessCondition            string             `json:"success_condition"`
	SettlingDelaySecs           uint32             `json:"settling_delay_secs"`
	PassingIntervalSecs         uint32             `json:"passing_interval_secs"`
	FailingIntervalSecs         uint32             `json:"failing_interval_secs"`
	PassThreshold               uint32             `json:"pass_threshold"`
	FailThreshold               uint32             `json:"fail_threshold"`
	ResponseTimeoutSecs         uint32             `json:"response_timeout_secs"`
	FailingTestsMetricsIncrease uint32             `json:"failing_tests_metrics_increase"`
	Tests                       []ActionConfigDump `json:"tests"`
	RecoveryTasks               []ActionConfigDump `json:"recovery_tasks"`
}

// StateDump is the full tree returned by the "state" RPC for one interface
// (§4.8): connection substate, tester substate, statistics, and config.
type StateDump struct {
	Connection ConnectionDump `json:"interface"`
	Tester     TesterDump     `json:"tester"`
	Config     ConfigDump     `json:"config"`
}

// Dump builds a read-only snapshot of the interface's current state. It
// takes mu itself, so it may be called at any time, including concurrently
// with dispatch.
func (iface *Interface) Dump() StateDump {
	iface.mu.Lock()
	defer iface.mu.Unlock()
	return iface.dumpLocked()
}

func (iface *Interface) dumpLocked() StateDump {
	return StateDump{
		Connection: iface.dumpConnectionLocked(),
		Tester:     iface.dumpTesterLocked(),
		Config:     iface.dumpConfigLocked(),
	}
}

func (iface *Interface) dumpConnectionLocked() ConnectionDump {
	return ConnectionDump{
		Connected: iface.connectionState != ConnectionDisconnected,
		State:     iface.connectionState.String(),
		Settling:  dumpTimer(iface.settlingTimer),
	}
}

func (iface *Interface) dumpTesterLocked() TesterDump {
	d := TesterDump{
		TestIndex:               iface.testIndex,
		State:                   iface.testerState.String(),
		OperationalState:        iface.classification.String(),
		MetricsAreAdjusted:      iface.metricsAreAdjusted,
		TestResponseTimeout:     dumpTimer(iface.testResponseTimer),
		TestInterval:            dumpTimer(iface.testIntervalTimer),
		RecoveryResponseTimeout: dumpTimer(iface.recoveryResponseTimer),
		TestProcessRunning:      iface.testProc.Running(),
		LastTestExitCode:        iface.lastTestExitCode,
		LastTestPassed:          iface.lastTestPassed,
		RecoveryTaskRunning:     iface.recoveryProc.Running(),
		Stats: StatisticsDump{
			TestRuns: iface.stats.TestRuns,
			Tests:    iface.stats.Tests,
			Recovery: iface.stats.Recovery,
		},
	}

	if len(iface.config.RecoveryTasks) > 0 {
		idx := iface.recoveryIndex
		label := iface.config.RecoveryTasks[idx].Label
		d.NextRecoveryTask = &idx
		d.NextRecoveryLabel = &label
	}
	if pid := iface.testProc.Pid(); pid != 0 {
		d.TestProcessPid = &pid
	}
	if pid := iface.recoveryProc.Pid(); pid != 0 {
		d.RecoveryTaskPid = &pid
	}

	return d
}

func (iface *Interface) dumpConfigLocked() ConfigDump {
	return ConfigDump{
		SuccessCondition:            string(iface.config.SuccessCondition),
		SettlingDelaySecs:           iface.config.SettlingDelaySecs,
		PassingIntervalSecs:         iface.config.TestPassingIntervalSecs,
		FailingIntervalSecs:         iface.config.TestFailingIntervalSecs,
		PassThreshold:               iface.config.PassThreshold,
		FailThreshold:               iface.config.FailThreshold,
		ResponseTimeoutSecs:         iface.config.ResponseTimeoutSecs,
		FailingTestsMetricsIncrease: iface.config.FailingTestsMetricsIncrease,
		Tests:                       dumpActionConfigs(iface.config.Tests),
		RecoveryTasks:               dumpActionConfigs(iface.config.RecoveryTasks),
	}
}

func dumpActionConfigs(actions []ActionConfig) []ActionConfigDump {
	out := make([]ActionConfigDump, len(actions))
	for i, a := range actions {
		out[i] = ActionConfigDump{
			Executable:          a.ExecutableName,
			Label:               a.Label,
			ResponseTimeoutSecs: a.ResponseTimeoutSecs,
			Params:              string(a.Params),
		}
	}
	return out
}
