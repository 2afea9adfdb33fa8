package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/logging"
	"github.com/oriys/iotagent/internal/value"
	"github.com/spf13/cobra"
)

// runCmd starts the library's worker pool and keeps the process alive,
// publishing a synthetic "temp" sample every tick until interrupted.
// Each tick it also executes the sample "echo" action, so a connected
// bridge/loopback sees Publish and Transmit traffic.
func runCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the agent: register sample items, start workers, publish telemetry until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lib, err := buildLibrary(ctx)
			if err != nil {
				return err
			}
			if err := registerSampleItems(ctx, lib); err != nil {
				return err
			}
			lib.Start()

			logging.Op().Info("agent running", "device_id", lib.DeviceID())

			echoReq := action.NewRequest(uuid.NewString(), "echo")
			echoReq.Bind("in", value.OwnedString("hello"))

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return lib.Terminate(context.Background(), 5*time.Second)
				case <-ticker.C:
					sample := value.Float32(20 + rand.Float32()*10)
					if err := lib.Publish(ctx, "temp", sample, nil); err != nil {
						logging.Op().Warn("publish failed", "error", err)
					}
					if err := lib.Execute(echoReq.Clone()); err != nil {
						logging.Op().Warn("execute echo failed", "error", err)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "telemetry publish interval")
	return cmd
}

func alarmCmd() *cobra.Command {
	var severity, message string

	cmd := &cobra.Command{
		Use:   "alarm NAME",
		Short: "register and raise a single alarm, then exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lib, err := buildLibrary(ctx)
			if err != nil {
				return err
			}
			defer lib.Terminate(context.Background(), 2*time.Second)

			name := args[0]
			if _, err := lib.RegisterAlarm(ctx, name); err != nil {
				return fmt.Errorf("register alarm: %w", err)
			}
			sev := parseSeverity(severity)
			if err := lib.RaiseAlarm(ctx, name, sev, message); err != nil {
				return fmt.Errorf("raise alarm: %w", err)
			}
			fmt.Printf("raised alarm %q (%s): %s\n", name, sev, message)
			return nil
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "warning", "info|warning|error|critical")
	cmd.Flags().StringVar(&message, "message", "", "alarm message")
	return cmd
}
