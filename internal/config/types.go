// Package config loads and validates the connectivity-tester configuration
// document described in the external interfaces section of the design: a
// map of interface name to its test/recovery schedule.
package config

// Document is the top-level configuration document consumed by the
// daemon's "config" RPC and by the configurator's file loader.
type Document struct {
	Interfaces map[string]InterfaceConfig `yaml:"interfaces" json:"interfaces" validate:"dive"`
}

// InterfaceConfig is one interface's entry in the document.
type InterfaceConfig struct {
	SuccessCondition            string         `yaml:"success_condition" json:"success_condition" validate:"required,oneof=one_test_must_pass all_tests_must_pass"`
	SettlingDelaySecs           uint32         `yaml:"settling_delay_secs" json:"settling_delay_secs"`
	PassingIntervalSecs         uint32         `yaml:"passing_interval_secs" json:"passing_interval_secs" validate:"required,gt=0"`
	FailingIntervalSecs         uint32         `yaml:"failing_interval_secs" json:"failing_interval_secs" validate:"required,gt=0"`
	PassThreshold                uint32        `yaml:"pass_threshold" json:"pass_threshold" validate:"required,gt=0"`
	FailThreshold                uint32        `yaml:"fail_threshold" json:"fail_threshold" validate:"required,gt=0"`
	ResponseTimeoutSecs         uint32         `yaml:"response_timeout_secs" json:"response_timeout_secs" validate:"required,gt=0"`
	FailingTestsMetricsIncrease uint32         `yaml:"failing_tests_metrics_increase" json:"failing_tests_metrics_increase"`
	Tests                       []ActionConfig `yaml:"tests" json:"tests" validate:"required,min=1,dive"`
	RecoveryTasks               []ActionConfig `yaml:"recovery_tasks" json:"recovery_tasks" validate:"dive"`
}

// ActionConfig is one test or recovery task entry. Params is an arbitrary
// key/value table, decoded the same loosely-typed way muster decodes its
// own capability/serviceClass tool argument tables.
type ActionConfig struct {
	Executable          string                 `yaml:"executable" json:"executable" validate:"required"`
	Label               string                 `yaml:"label" json:"label" validate:"required"`
	Params              map[string]interface{} `yaml:"params" json:"params"`
	ResponseTimeoutSecs uint32                 `yaml:"response_timeout_secs" json:"response_timeout_secs"`
}
