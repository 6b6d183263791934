package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/openmined/fimsync/internal/agent"
)

func newDigestCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the global digest of the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := agent.JournalDigest(c.cfg.StorePath)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(summary)
			}
			if summary.Count == 0 {
				_, err = fmt.Fprintln(out, "no entries")
				return err
			}
			_, err = fmt.Fprintf(out, "entries:  %d\nbegin:    %s\nend:      %s\nchecksum: %s\n",
				summary.Count, summary.Begin, summary.End, summary.Checksum)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as json")
	return cmd
}
