package tester

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors the control engine updates as it
// runs. Observability is not named as a core module by the specification,
// but every long-running daemon in this codebase's lineage exports
// Prometheus metrics, and §7's queue-overflow error kind explicitly wants
// to be observable without grepping logs.
type Metrics struct {
	QueueOverflows   prometheus.Counter
	TestRunsTotal    *prometheus.CounterVec
	RecoveryStarts   *prometheus.CounterVec
	Operational      *prometheus.GaugeVec
	TesterState      *prometheus.GaugeVec
}

// NewMetrics creates and registers the tester's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iftester_event_queue_overflow_total",
			Help: "Number of events dropped due to per-interface event queue overflow.",
		}),
		TestRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iftester_test_runs_total",
			Help: "Completed test-runs per interface, labelled by result.",
		}, []string{"interface", "result"}),
		RecoveryStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iftester_recovery_starts_total",
			Help: "Recovery actions started per interface.",
		}, []string{"interface", "label"}),
		Operational: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iftester_interface_operational",
			Help: "1 if the interface is currently classified operational, 0 if broken.",
		}, []string{"interface"}),
		TesterState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iftester_interface_tester_state",
			Help: "Current tester FSM state per interface (0=stopped,1=sleeping,2=testing,3=recovering).",
		}, []string{"interface"}),
	}

	reg.MustRegister(m.QueueOverflows, m.TestRunsTotal, m.RecoveryStarts, m.Operational, m.TesterState)
	return m
}
