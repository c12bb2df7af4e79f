package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/horus-robotics/horus-core/config"
	"github.com/horus-robotics/horus-core/discovery"
)

func newDiscoverCmd(dotenv *string) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print a one-shot live view of nodes and topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := config.LoadEnv(*dotenv)
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolving home dir: %w", err)
			}

			d := discovery.New(rt.ShmRoot, home)
			snap, err := d.Scan(time.Now())
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}

			fmt.Println(renderNodes(snap.Nodes))
			fmt.Println()
			fmt.Println(renderTopics(snap.Topics))
			return nil
		},
	}
}
