package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/oriys/iotagent/internal/agentlib"
	"github.com/oriys/iotagent/internal/value"
	"github.com/spf13/cobra"
)

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish NAME VALUE",
		Short: "register telemetry channel NAME and publish one float value, then exit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lib, err := buildLibrary(ctx)
			if err != nil {
				return err
			}
			defer lib.Terminate(context.Background(), 2*time.Second)

			name := args[0]
			f, err := strconv.ParseFloat(args[1], 32)
			if err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			if _, err := lib.RegisterTelemetry(ctx, name, value.KindFloat32); err != nil {
				return fmt.Errorf("register telemetry: %w", err)
			}
			if err := lib.Publish(ctx, name, value.Float32(float32(f)), nil); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			fmt.Printf("published %s=%v\n", name, f)
			return nil
		},
	}
	return cmd
}

func parseSeverity(s string) agentlib.Severity {
	switch s {
	case "info":
		return agentlib.SeverityInfo
	case "error":
		return agentlib.SeverityError
	case "critical":
		return agentlib.SeverityCritical
	default:
		return agentlib.SeverityWarning
	}
}
