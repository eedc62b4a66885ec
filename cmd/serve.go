package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ByLCY/jacket/srv"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the preview and proof HTTP API",
		Example: `  # Start server on the configured address (default :8080)
  jacket serve

  # Start server on a custom address
  jacket serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			handler := srv.New(srv.Options{
				Engine:            a.engine(""),
				Job:               cfg.Job(),
				Proof:             cfg.Proof,
				Fetch:             cfg.Artwork.Fetch,
				RequestsPerMinute: cfg.Server.RequestsPerMinute,
				MaxBodyBytes:      cfg.Server.MaxBodyBytes,
				Logger:            a.logger.Named("http"),
			})
			server := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

			serverErr := make(chan error, 1)
			go func() {
				a.logger.Info("jacket API available", zap.String("addr", cfg.Server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				a.logger.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("server shutdown failed", zap.Error(err))
					return err
				}
				a.logger.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
