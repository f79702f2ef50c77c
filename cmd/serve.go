package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aisavvy/aisavvy/internal/api"
	"github.com/aisavvy/aisavvy/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP query service",
	Long: `Starts an HTTP server exposing POST /query for natural language
questions, GET /healthz for liveness, and GET /metrics for Prometheus.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	handler := api.NewHandler(rt.engine, rt.db, rt.logger)

	server := &http.Server{
		Addr:    rt.cfg.Server.Addr,
		Handler: handler.Routes(),
	}

	errCh := make(chan error, 1)

	go func() {
		rt.logger.Info("http server listening", slog.String("addr", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		config.Duration(rt.cfg.Server.ShutdownTimeout))
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
