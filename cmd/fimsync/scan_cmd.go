package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openmined/fimsync/internal/agent"
)

func newScanCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the monitored directories once into the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := agent.ScanOnce(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"added %d, modified %d, deleted %d, unchanged %d, skipped %d (hashed %s in %s)\n",
				result.Added, result.Modified, result.Deleted, result.Unchanged, result.Skipped,
				humanize.Bytes(uint64(result.Bytes)), result.Duration.Round(time.Millisecond),
			)
			return err
		},
	}
}
