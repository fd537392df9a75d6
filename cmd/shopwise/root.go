package main

import (
	"log/slog"

	"github.com/FranksOps/shopwise/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cli carries state shared by all subcommands of one invocation.
type cli struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "shopwise",
		Short: "Compare products for a shopping question",
		Long: `shopwise turns a shopping question into a structured product comparison.

It plans search keywords with an LLM, searches a retailer, scrapes the product
pages it finds and asks the model for a side-by-side comparison.

Commands:
  shopwise compare <query>   Run one comparison and print it
  shopwise serve             Serve POST /api/search over HTTP
  shopwise history           List stored comparisons`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default ./shopwise.yaml or ./configs/shopwise.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("storage", "", "history backend: none, sqlite, postgres, json")
	pf.String("storage-dsn", "", "file path or connection string for the history backend")
	c.bind("log.level", pf.Lookup("log-level"))
	c.bind("log.format", pf.Lookup("log-format"))
	c.bind("storage.kind", pf.Lookup("storage"))
	c.bind("storage.dsn", pf.Lookup("storage-dsn"))

	root.AddCommand(
		newCompareCmd(c),
		newServeCmd(c),
		newHistoryCmd(c),
	)
	return root
}

// bind ties a flag to a config key. BindPFlag only fails on a nil flag.
func (c *cli) bind(key string, f *pflag.Flag) {
	if err := c.v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// load reads configuration and builds the logger, which writes to the
// command's stderr.
func (c *cli) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
