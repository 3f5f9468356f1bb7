package tester

import (
	"os"
	"os/exec"
	"sync"

	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// execCommand is a package-level seam over exec.Command so tests can stub
// out process spawning, the same pattern the teacher uses to make its
// container runtime exec calls swappable.
var execCommand = exec.Command

// execKilledExitCode is reported when the process runner's Kill forcibly
// terminates a child (used for the response-timeout path, §4.3).
const execKilledExitCode = -1

// execFailedToStartExitCode mirrors the original daemon's convention that a
// child which never successfully exec'd is accounted as exit status 127.
const execFailedToStartExitCode = 127

// ProcessRunner starts and supervises a single external executable at a
// time on behalf of one Interface (one instance for the current test, one
// for the current recovery action, per §4.3).
type ProcessRunner struct {
	mu      sync.Mutex
	label   string
	cmd     *exec.Cmd
	running bool
	pid     int

	// onExit is invoked with the process's exit code and whether it was
	// forcibly killed by this runner (a timeout, not a natural exit).
	onExit func(exitCode int, killed bool)
}

// NewProcessRunner creates a runner that reports completions via onExit.
// label identifies the runner ("test" or "recovery") for logging.
func NewProcessRunner(label string, onExit func(exitCode int, killed bool)) *ProcessRunner {
	return &ProcessRunner{label: label, onExit: onExit}
}

// Start kills any child already bound to this handle, then spawns argv[0]
// with the remaining argv entries as arguments, in cwd, with a closed
// environment and stdio redirected to the null device (§4.3). Failure to
// start synthesises an exit-127 completion, matching the original's
// fork/exec-failure accounting, and Start reports false so callers that
// gate further action on a successful spawn (§4.5.2's recovery dispatch)
// can fall through instead.
func (p *ProcessRunner) Start(argv []string, cwd string) bool {
	p.mu.Lock()
	p.killLocked()
	p.mu.Unlock()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		logging.Error(p.label, err, "unable to open null device")
		p.reportExit(execFailedToStartExitCode, false)
		return false
	}
	defer devNull.Close()

	cmd := execCommand(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = []string{}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		logging.Warn(p.label, "failed to start %v: %v", argv, err)
		p.reportExit(execFailedToStartExitCode, false)
		return false
	}

	p.mu.Lock()
	p.cmd = cmd
	p.running = true
	p.pid = cmd.Process.Pid
	p.mu.Unlock()

	go p.wait(cmd)
	return true
}

func (p *ProcessRunner) wait(cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	// A newer Start() call (or Kill) may already have replaced/cleared cmd;
	// only report if we are still the active child.
	if p.cmd != cmd {
		p.mu.Unlock()
		return
	}
	killed := !p.running // Kill() clears running before signalling
	p.cmd = nil
	p.running = false
	p.pid = 0
	p.mu.Unlock()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = execFailedToStartExitCode
		}
	}
	if killed {
		exitCode = execKilledExitCode
	}

	p.reportExit(exitCode, killed)
}

func (p *ProcessRunner) reportExit(exitCode int, killed bool) {
	if p.onExit != nil {
		p.onExit(exitCode, killed)
	}
}

// Kill sends SIGKILL to the running child, if any. The wait goroutine then
// reports the exit through onExit with killed=true and execKilledExitCode;
// if a later Start has replaced the child by the time the wait goroutine
// observes the exit, nothing is reported. Safe to call with no child
// running.
func (p *ProcessRunner) Kill() {
	p.mu.Lock()
	p.killLocked()
	p.mu.Unlock()
}

func (p *ProcessRunner) killLocked() {
	if p.cmd == nil || !p.running {
		return
	}
	p.running = false
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Running reports whether a child process is currently active.
func (p *ProcessRunner) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Pid returns the running child's pid, or 0 if none.
func (p *ProcessRunner) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}
