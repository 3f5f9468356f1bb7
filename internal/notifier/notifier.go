// Package notifier implements the configurator side of the system: it
// watches the daemon's bus announcements, pushes the active configuration
// document whenever the daemon reports "up", and spawns an operator-supplied
// notifier executable whenever an interface's classification changes.
//
// This is the Go counterpart of the original configurator/ubus.c and
// configurator/event_processor.c: one bus subscription drives
// sendConfigToTester, the other drives runEventProcessor.
package notifier

import (
	"context"
	"encoding/json"
	"os"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/internal/config"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

// Configurator watches the daemon's lifecycle and operational events and
// reacts to them; it owns no FSMs of its own.
type Configurator struct {
	Bus              bus.Bus
	ConfigPath       string
	EventProcessor   string // path to the operator-supplied notifier executable; "" disables spawning.
}

// Start subscribes to the two channels the original ubus.c subscribed to:
// the daemon's "up"/"down" lifecycle channel and the per-interface
// operational transition channel.
func (c *Configurator) Start(ctx context.Context) error {
	if err := c.Bus.Subscribe(bus.ChannelTesterUp, c.handleTesterUp); err != nil {
		return err
	}
	if err := c.Bus.Subscribe(bus.ChannelTesterOperational, c.handleOperational); err != nil {
		return err
	}
	logging.Info("Configurator", "subscribed to %s and %s", bus.ChannelTesterUp, bus.ChannelTesterOperational)
	return nil
}

func (c *Configurator) handleTesterUp(ctx context.Context, payload []byte) {
	var ev bus.TesterUpEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logging.Warn("Configurator", "malformed tester-up event: %v", err)
		return
	}
	if ev.State != "up" {
		return
	}
	if c.ConfigPath == "" {
		return
	}
	c.sendConfigToTester(ctx)
}

// sendConfigToTester is the Go counterpart of send_config_to_interface_tester:
// read the config file from disk and forward it over the daemon's "config"
// RPC object, exactly as the original invoked ubus_invoke(..., "config", ...).
func (c *Configurator) sendConfigToTester(ctx context.Context) {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		logging.Warn("Configurator", "failed to read config %s: %v", c.ConfigPath, err)
		return
	}

	doc, err := config.ParseDocument(data)
	if err != nil {
		logging.Warn("Configurator", "config %s failed to parse: %v", c.ConfigPath, err)
		return
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		logging.Warn("Configurator", "failed to re-encode config %s: %v", c.ConfigPath, err)
		return
	}

	rpcCtx, cancel := context.WithTimeout(ctx, bus.ConfiguratorRPCTimeout)
	defer cancel()
	if _, err := c.Bus.Call(rpcCtx, bus.MethodConfig, payload); err != nil {
		logging.Warn("Configurator", "failed to push config to tester: %v", err)
		return
	}
	logging.Info("Configurator", "pushed config from %s to tester", c.ConfigPath)
}

func (c *Configurator) handleOperational(ctx context.Context, payload []byte) {
	var ev bus.OperationalEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logging.Warn("Configurator", "malformed operational event: %v", err)
		return
	}
	if c.EventProcessor == "" {
		return
	}
	runEventProcessor(c.EventProcessor, ev.Interface, ev.IsOperational)
}
