package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/leofalp/planner/internal/web"
	"github.com/leofalp/planner/providers/observability"
)

func newServeCommand(application *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning page",
		Long:  `Starts the HTTP server with the planning form on server.addr and, when metrics.addr is set, a Prometheus endpoint on its own listener.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				application.config.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// serve runs the web server, and the metrics server when configured, until
// ctx is done or a listener fails.
func (application *app) serve(ctx context.Context) error {
	service, err := application.newService()
	if err != nil {
		return err
	}

	cfg := application.config
	observer := application.observer

	servers := []*http.Server{{
		Addr: cfg.Server.Addr,
		Handler: web.NewHandler(service,
			web.WithObserver(observer),
			web.WithPlanTimeout(cfg.Server.PlanTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(application.registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:        cfg.Metrics.Addr,
			Handler:     mux,
			ReadTimeout: cfg.Server.ReadTimeout,
		})
	}

	serverErrors := make(chan error, len(servers))
	for _, server := range servers {
		go func() {
			observer.Info(ctx, "Listening", observability.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- fmt.Errorf("listen on %s: %w", server.Addr, err)
			}
		}()
	}

	var serveErr error
	select {
	case serveErr = <-serverErrors:
	case <-ctx.Done():
		observer.Info(context.Background(), "Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			observer.Warn(shutdownCtx, "Graceful shutdown did not complete",
				observability.String("addr", server.Addr),
				observability.Error(err),
			)
			_ = server.Close()
		}
	}
	return serveErr
}
