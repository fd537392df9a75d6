package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/shopwise/internal/api"
	"github.com/FranksOps/shopwise/internal/app"
	"github.com/FranksOps/shopwise/internal/metrics"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison API and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			separateMetrics := cfg.Server.MetricsAddr != ""
			if separateMetrics {
				ms := metrics.Start(cfg.Server.MetricsAddr, logger)
				defer ms.Stop(context.Background())
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           api.NewServer(a.Runner, logger).Handler(!separateMetrics),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("metrics-addr", "", "serve /metrics on a separate address")
	c.bind("server.addr", cmd.Flags().Lookup("addr"))
	c.bind("server.metrics_addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}
