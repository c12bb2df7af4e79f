package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/horus-robotics/horus-core/config"
	"github.com/horus-robotics/horus-core/discovery"
)

func newMonitorCmd(dotenv *string) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Continuously refresh the live view of nodes and topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := config.LoadEnv(*dotenv)
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolving home dir: %w", err)
			}

			d := discovery.New(rt.ShmRoot, home)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				snap, err := d.Scan(time.Now())
				if err != nil {
					return fmt.Errorf("monitor: %w", err)
				}
				fmt.Print("\033[H\033[2J") // clear screen between refreshes
				fmt.Printf("horus monitor — %s\n\n", timestamp())
				fmt.Println(renderNodes(snap.Nodes))
				fmt.Println()
				fmt.Println(renderTopics(snap.Topics))

				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval")
	return cmd
}
