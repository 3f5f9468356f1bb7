// Command iftesterd is the per-interface connectivity tester daemon: it
// loads a configuration document, spins up one Interface controller per
// configured interface, and serves bus RPCs for config push, state
// introspection, and reload for as long as the process runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/internal/config"
	"github.com/chrisnisbet/iftesterd/internal/tester"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

var (
	flagConfigFile      string
	flagBusAddr         string
	flagTestDir         string
	flagRecoveryDir     string
	flagLogThreshold    string
	flagLogFile         string
	flagMetricsAddr     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iftesterd",
		Short: "Per-interface connectivity tester daemon",
		RunE:  runDaemon,
	}

	cmd.Flags().StringVarP(&flagConfigFile, "config", "c", "", "path to the configuration file")
	cmd.Flags().StringVarP(&flagBusAddr, "bus", "s", "127.0.0.1:6379", "bus socket/address")
	cmd.Flags().StringVarP(&flagTestDir, "test-dir", "S", ".", "directory containing test executables")
	cmd.Flags().StringVarP(&flagRecoveryDir, "recovery-dir", "r", ".", "directory containing recovery executables")
	cmd.Flags().StringVarP(&flagLogThreshold, "log-threshold", "t", "info", "log threshold: debug|info|warn|error")
	cmd.Flags().StringVarP(&flagLogFile, "log-file", "l", "", "optional rotating log file path")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "optional address to serve Prometheus metrics on, e.g. :9110")

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	level := logging.ParseLevel(flagLogThreshold)
	if flagLogFile != "" {
		logging.InitWithRotatingFile(level, os.Stderr, flagLogFile)
	} else {
		logging.InitForCLI(level, os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	valkeyBus, err := bus.NewValkeyBus(flagBusAddr)
	if err != nil {
		return fmt.Errorf("connecting to bus at %s: %w", flagBusAddr, err)
	}
	defer valkeyBus.Close()

	registry := tester.NewRegistry(&tester.Context{
		Bus:             valkeyBus,
		TestDir:         flagTestDir,
		RecoveryDir:     flagRecoveryDir,
		MetricsAdjuster: tester.BusMetricsAdjuster{Bus: valkeyBus},
		Metrics:         tester.NewMetrics(prometheus.DefaultRegisterer),
	})

	if err := registerDaemonObject(valkeyBus, registry); err != nil {
		return fmt.Errorf("registering bus object: %w", err)
	}

	if err := publishTesterUp(ctx, valkeyBus, true); err != nil {
		logging.Warn("Daemon", "failed to announce tester up: %v", err)
	}
	defer publishTesterUp(context.Background(), valkeyBus, false)

	if flagConfigFile != "" {
		if err := reloadFromFile(ctx, registry, flagConfigFile); err != nil {
			logging.Warn("Daemon", "initial config load from %s failed: %v", flagConfigFile, err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	if flagConfigFile != "" {
		watcher := config.NewWatcher(flagConfigFile, func() {
			if err := reloadFromFile(context.Background(), registry, flagConfigFile); err != nil {
				logging.Warn("Daemon", "config reload from %s failed: %v", flagConfigFile, err)
			}
		})
		if err := watcher.Start(); err != nil {
			logging.Warn("Daemon", "failed to start config watcher: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	if flagMetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gCtx, flagMetricsAddr)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && gCtx.Err() == nil {
		return err
	}

	logging.Info("Daemon", "shutting down")
	return nil
}

func registerDaemonObject(b bus.Bus, registry *tester.Registry) error {
	err := b.Subscribe(bus.ChannelNetworkInterface, func(ctx context.Context, payload []byte) {
		var ev bus.NetworkInterfaceEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logging.Warn("Daemon", "malformed network.interface event: %v", err)
			return
		}
		registry.DispatchLinkEvent(&ev, nil)
	})
	if err != nil {
		return err
	}

	err = b.Subscribe(bus.ChannelInterfaceState, func(ctx context.Context, payload []byte) {
		var ev bus.InterfaceStateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logging.Warn("Daemon", "malformed interface.state event: %v", err)
			return
		}
		registry.DispatchLinkEvent(nil, &ev)
	})
	if err != nil {
		return err
	}

	return b.RegisterObject(bus.ObjectTester, map[string]bus.MethodHandler{
		bus.MethodConfig: func(ctx context.Context, args []byte) (any, error) {
			return nil, applyConfigDocument(ctx, registry, args)
		},
		bus.MethodState: func(ctx context.Context, args []byte) (any, error) {
			return registry.DumpAll(), nil
		},
		bus.MethodConfigReload: func(ctx context.Context, args []byte) (any, error) {
			if flagConfigFile == "" {
				return nil, fmt.Errorf("no config file configured")
			}
			return nil, reloadFromFile(ctx, registry, flagConfigFile)
		},
	})
}

func applyConfigDocument(ctx context.Context, registry *tester.Registry, payload []byte) error {
	doc, err := config.ParseDocument(payload)
	if err != nil {
		return fmt.Errorf("invalid-argument: %w", err)
	}
	applyDocument(ctx, registry, doc)
	return nil
}

func reloadFromFile(ctx context.Context, registry *tester.Registry, path string) error {
	doc, err := config.Load(path)
	if err != nil {
		return err
	}
	applyDocument(ctx, registry, doc)
	return nil
}

func applyDocument(ctx context.Context, registry *tester.Registry, doc *config.Document) {
	valid, errs := config.ValidateDocument(doc)
	for _, e := range errs {
		logging.Warn("Daemon", "skipping invalid interface: %v", e)
	}
	for name, cfg := range valid {
		tc, err := config.ToTesterConfig(cfg)
		if err != nil {
			logging.Warn("Daemon", "interface %q: %v", name, err)
			continue
		}
		registry.Update(name, tc)
	}
	registry.Flush(ctx)
}

func publishTesterUp(ctx context.Context, b bus.Bus, up bool) error {
	state := "down"
	if up {
		state = "up"
	}
	payload, err := json.Marshal(bus.TesterUpEvent{State: state})
	if err != nil {
		return err
	}
	return b.Publish(ctx, bus.ChannelTesterUp, payload)
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logging.Info("Daemon", "serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
