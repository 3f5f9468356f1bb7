package notifier

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

var execCommand = exec.Command

// runEventProcessor is the Go counterpart of run_event_processor: it spawns
// the operator-supplied notifier executable as
// "./<exe> <interface> operational|broken", run from the executable's own
// directory, with a scrubbed environment, and does not wait for it.
func runEventProcessor(eventProcessorPath, interfaceName string, isOperational bool) {
	dir := filepath.Dir(eventProcessorPath)
	exeName := "./" + filepath.Base(eventProcessorPath)

	state := "broken"
	if isOperational {
		state = "operational"
	}

	cmd := execCommand(exeName, interfaceName, state)
	cmd.Dir = dir
	cmd.Env = []string{}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		logging.Warn("Configurator", "interface %q: failed to open %s: %v", interfaceName, os.DevNull, err)
		return
	}
	defer devnull.Close()
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull

	if err := cmd.Start(); err != nil {
		logging.Warn("Configurator", "interface %q: failed to run event processor %s: %v", interfaceName, eventProcessorPath, err)
		return
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Debug("Configurator", "event processor for %q exited: %v", interfaceName, err)
		}
	}()
}
