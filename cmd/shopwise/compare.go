package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FranksOps/shopwise/internal/app"
	"github.com/FranksOps/shopwise/internal/report"
	"github.com/spf13/cobra"
)

func newCompareCmd(c *cli) *cobra.Command {
	var (
		format string
		caller string
	)

	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Run one comparison and print the result",
		Example: `  shopwise compare 比較電競筆電
  shopwise compare --format json "降噪耳機 推薦"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "raw":
			default:
				return fmt.Errorf("unknown format %q (want text, json or raw)", format)
			}

			cfg, logger, err := c.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.Runner.Run(ctx, caller, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeRun(cmd, format, run.Outcome, report.Summarize(run))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "text", "output format: text, json (run summary) or raw (response body)")
	f.StringVar(&caller, "caller", "cli", "caller identity recorded in history")
	f.Int("num-results", 10, "search results to scrape")
	f.String("site-filter", "24h.pchome.com.tw/prod", "restrict search to URLs containing this; empty searches everywhere")
	f.Int("concurrency", 4, "concurrent page fetches")
	c.bind("search.num_results", f.Lookup("num-results"))
	c.bind("search.site_filter", f.Lookup("site-filter"))
	c.bind("scraper.concurrency", f.Lookup("concurrency"))

	return cmd
}

func writeRun(cmd *cobra.Command, format string, body any, summary report.Summary) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return report.WriteJSON(out, summary)
	case "raw":
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(body)
	default:
		return report.WriteText(out, summary)
	}
}
