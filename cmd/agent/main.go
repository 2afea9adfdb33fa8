// Command agent is a sample process embedding the iotagent core
// library: it registers a telemetry channel, an alarm, and a couple of
// actions (one callback-backed, one external-command-backed), then
// either runs the worker pool as a long-lived daemon or drives a single
// one-shot operation (publish, raise an alarm, upload/download a file)
// useful for smoke-testing a deployment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	idPath     string
	mqttAddr   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agent",
		Short: "iotagent sample device agent",
		Long:  "A sample device-side process embedding the iotagent core library.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a JSON or YAML config file")
	rootCmd.PersistentFlags().StringVar(&idPath, "identity", "", "override the device-identity file path")
	rootCmd.PersistentFlags().StringVar(&mqttAddr, "bridge-addr", "", "companion bridge process gRPC address (empty uses an in-process loopback plugin)")

	rootCmd.AddCommand(
		runCmd(),
		publishCmd(),
		alarmCmd(),
		uploadCmd(),
		downloadCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the agent build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("iotagent-agent dev")
			return nil
		},
	}
}
