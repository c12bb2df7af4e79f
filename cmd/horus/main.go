// Command horus is the operator-facing CLI over the discovery and
// monitoring surfaces spec §6 exposes: `discover` prints a one-shot live
// view of nodes and topics, `monitor` refreshes it on an interval.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dotenv string

	root := &cobra.Command{
		Use:           "horus",
		Short:         "Inspect a HORUS session's nodes, topics, and schedulers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dotenv, "env-file", "", "optional .env file to load HORUS_* variables from")

	root.AddCommand(newDiscoverCmd(&dotenv))
	root.AddCommand(newMonitorCmd(&dotenv))
	return root
}
