package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/FranksOps/shopwise/internal/app"
	"github.com/FranksOps/shopwise/internal/storage"
	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		filter storage.Filter
		since  time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored comparisons, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.Kind == "" || cfg.Storage.Kind == "none" {
				return fmt.Errorf("history is disabled; set storage.kind and storage.dsn")
			}
			if err := cfg.Storage.Validate(); err != nil {
				return err
			}

			b, err := app.OpenBackend(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer b.Close()

			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			records, err := b.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tCALLER\tOUTCOME\tSOURCES\tQUERY\tID")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Caller, r.Outcome, len(r.Sources), r.Query, r.ID)
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Caller, "caller", "", "only this caller")
	f.StringVar(&filter.Outcome, "outcome", "", "only this outcome: structured, unstructured, parse_failed")
	f.DurationVar(&since, "since", 0, "only records newer than this, e.g. 24h")
	f.IntVar(&filter.Limit, "limit", 20, "maximum records to list; 0 lists all")
	f.IntVar(&filter.Offset, "offset", 0, "records to skip")
	f.BoolVar(&asJSON, "json", false, "print full records as JSON")

	return cmd
}
