package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	api "github.com/adamanr/hr_console/internal/api/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(get func() *app) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local console gateway for the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			cfg := a.cfg

			if host == "" {
				host = cfg.Gateway.Host
			}

			server := api.NewServer(a.deps, a.ctrls)

			s := &http.Server{
				Handler:           api.NewRouter(server, a.registry),
				Addr:              host,
				WriteTimeout:      cfg.Gateway.WriteTimeout,
				ReadTimeout:       cfg.Gateway.ReadTimeout,
				ReadHeaderTimeout: cfg.Gateway.ReadHeaderTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Server is starting", slog.String("address", host))
				errCh <- s.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			a.logger.Info("Server is shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return s.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen address, defaults to gateway.host")

	return cmd
}
