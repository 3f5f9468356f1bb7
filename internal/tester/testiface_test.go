package tester

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/chrisnisbet/iftesterd/internal/bus"
)

// stubLongRunningExecCommand replaces execCommand with one that re-execs
// this test binary into TestHelperProcessSleep (process_test.go), a child
// that blocks forever until killed. Without this, runTest/maybeStartRecovery
// would spawn a real child for a nonexistent executable under t.TempDir();
// ProcessRunner.Start would report that failure synchronously as exit 127,
// and the resulting EventTestFailed would drain inside the same dispatch
// and cascade the tester straight back out of Testing before a test ever
// gets to observe it there.
func stubLongRunningExecCommand(t *testing.T) {
	t.Helper()
	orig := execCommand
	execCommand = func(name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcessSleep", "--", "HELPER_SLEEP=1"}
		return exec.Command(os.Args[0], cs...)
	}
	t.Cleanup(func() { execCommand = orig })
}

// newTestInterface wires up an Interface against an in-memory bus and a
// fake scheduler so tests can drive timers deterministically. The returned
// *fakeScheduler controls every timer the Interface owns (all four share
// the Context's single Scheduler, fixed at NewInterface time). execCommand
// is stubbed to a long-running child for the duration of the test, and any
// child left running is killed on cleanup.
func newTestInterface(t *testing.T, cfg InterfaceConfig) (*Interface, *bus.Memory, *fakeScheduler) {
	t.Helper()
	stubLongRunningExecCommand(t)

	memBus := bus.NewMemory()
	sched := &fakeScheduler{}
	ctx := &Context{
		Bus:         memBus,
		TestDir:     t.TempDir(),
		RecoveryDir: t.TempDir(),
		Scheduler:   sched,
	}
	iface := NewInterface(ctx, "eth0", cfg)
	t.Cleanup(func() {
		iface.testProc.Kill()
		iface.recoveryProc.Kill()
	})
	return iface, memBus, sched
}

func twoTestConfig() InterfaceConfig {
	return InterfaceConfig{
		SuccessCondition:        OneTestMustPass,
		SettlingDelaySecs:       1,
		TestPassingIntervalSecs: 10,
		TestFailingIntervalSecs: 2,
		PassThreshold:           2,
		FailThreshold:           3,
		ResponseTimeoutSecs:     5,
		Tests: []ActionConfig{
			{Index: 0, ExecutableName: "test0", Label: "primary"},
			{Index: 1, ExecutableName: "test1", Label: "secondary"},
		},
	}
}

func withRecovery(cfg InterfaceConfig) InterfaceConfig {
	cfg.RecoveryTasks = []ActionConfig{
		{Index: 0, ExecutableName: "recover0", Label: "reset-link"},
	}
	return cfg
}

// registerLinkStatus makes QueryLinkState(name) observe up/down for every
// future Call against that interface's status method. The object name
// itself is irrelevant to Memory's dispatch, which matches on method name
// alone, so any distinct name will do.
func registerLinkStatus(t *testing.T, b *bus.Memory, name string, up bool) {
	t.Helper()
	method := fmt.Sprintf(bus.RPCInterfaceStatusFmt, name)
	err := b.RegisterObject("test-fixture."+name, map[string]bus.MethodHandler{
		method: func(ctx context.Context, args []byte) (any, error) {
			return bus.InterfaceStatusReply{Up: up}, nil
		},
	})
	if err != nil {
		t.Fatalf("register link status fixture: %v", err)
	}
}
