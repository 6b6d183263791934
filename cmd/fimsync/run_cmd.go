package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openmined/fimsync/internal/agent"
	"github.com/openmined/fimsync/internal/config"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent: scan, watch and synchronize with the manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := agent.New(c.cfg)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			defer slog.Info("Bye!")
			return a.Start(cmd.Context())
		},
	}

	cmd.Flags().StringP("server", "s", "", "manager url")
	cmd.Flags().String("control-addr", config.DefaultControlAddr, "control plane listen address, empty disables it")
	cmd.Flags().Bool("realtime", true, "rescan files on filesystem events")
	return cmd
}
