// Command iftester-configurator is the sibling process that feeds
// configuration to iftesterd and reacts to its classification transitions:
// it watches the bus for the daemon announcing itself "up" and pushes the
// configuration document, and it spawns an operator-supplied notifier
// executable whenever an interface becomes operational or broken.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrisnisbet/iftesterd/internal/bus"
	"github.com/chrisnisbet/iftesterd/internal/notifier"
	"github.com/chrisnisbet/iftesterd/pkg/logging"
)

var (
	flagBusAddr        string
	flagConfigPath     string
	flagEventProcessor string
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iftester-configurator",
		Short: "Feeds configuration to iftesterd and runs notifier hooks on classification changes",
		RunE:  run,
	}

	cmd.Flags().StringVarP(&flagBusAddr, "bus", "s", "127.0.0.1:6379", "bus socket/address")
	cmd.Flags().StringVarP(&flagConfigPath, "config", "c", "", "path to the configuration file")
	cmd.Flags().StringVarP(&flagEventProcessor, "event-processor", "e", "", "path to the notifier executable to run on classification changes")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelInfo, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	valkeyBus, err := bus.NewValkeyBus(flagBusAddr)
	if err != nil {
		return fmt.Errorf("connecting to bus at %s: %w", flagBusAddr, err)
	}
	defer valkeyBus.Close()

	configurator := &notifier.Configurator{
		Bus:            valkeyBus,
		ConfigPath:     flagConfigPath,
		EventProcessor: flagEventProcessor,
	}
	if err := configurator.Start(ctx); err != nil {
		return fmt.Errorf("starting configurator: %w", err)
	}

	logging.Info("Configurator", "started")
	<-ctx.Done()
	logging.Info("Configurator", "shutting down")
	return nil
}
