package config

import (
	"encoding/json"
	"fmt"

	"github.com/chrisnisbet/iftesterd/internal/tester"
)

// ToTesterConfig converts one validated interface entry into the shape the
// tester package's FSMs consume, marshalling the loosely-typed Params table
// to the JSON blob handed to the test/recovery executables (§4.5.3).
func ToTesterConfig(cfg InterfaceConfig) (tester.InterfaceConfig, error) {
	tests, err := convertActions(cfg.Tests)
	if err != nil {
		return tester.InterfaceConfig{}, fmt.Errorf("tests: %w", err)
	}
	recoveryTasks, err := convertActions(cfg.RecoveryTasks)
	if err != nil {
		return tester.InterfaceConfig{}, fmt.Errorf("recovery_tasks: %w", err)
	}

	return tester.InterfaceConfig{
		SuccessCondition:            tester.SuccessCondition(cfg.SuccessCondition),
		SettlingDelaySecs:           cfg.SettlingDelaySecs,
		TestPassingIntervalSecs:     cfg.PassingIntervalSecs,
		TestFailingIntervalSecs:     cfg.FailingIntervalSecs,
		PassThreshold:               cfg.PassThreshold,
		FailThreshold:               cfg.FailThreshold,
		ResponseTimeoutSecs:         cfg.ResponseTimeoutSecs,
		FailingTestsMetricsIncrease: cfg.FailingTestsMetricsIncrease,
		Tests:                       tests,
		RecoveryTasks:               recoveryTasks,
	}, nil
}

func convertActions(actions []ActionConfig) ([]tester.ActionConfig, error) {
	out := make([]tester.ActionConfig, len(actions))
	for i, a := range actions {
		params, err := json.Marshal(a.Params)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): encoding params: %w", i, a.Label, err)
		}
		out[i] = tester.ActionConfig{
			Index:               i,
			ExecutableName:      a.Executable,
			Label:               a.Label,
			ResponseTimeoutSecs: a.ResponseTimeoutSecs,
			Params:              params,
		}
	}
	return out, nil
}
