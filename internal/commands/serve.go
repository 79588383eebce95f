package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(parent context.Context, a *app) error {
	bcfg, err := a.backendConfig()
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(a.logger).CreateBackend(parent, bcfg)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(res.Services, apphttp.Options{
		Addr:               ":" + a.cfg.Port,
		Logger:             a.logger,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimitPerMinute: a.cfg.RateLimitPerMinute,
		CacheSweepInterval: a.cfg.ReportCacheTTL,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ctx, done := cli.GracefulShutdown(ctx, a.logger, a.cfg.ShutdownTimeout, func(shutdownCtx context.Context) error {
		return errors.Join(srv.Shutdown(shutdownCtx), res.Cleanup())
	})

	listenErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting fintrack server", "port", a.cfg.Port, log.FieldBackend, a.cfg.DataBackend)
		listenErr <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server error", log.FieldError, err, "port", a.cfg.Port)
			serveErr = err
		}
		cancel()
	case <-ctx.Done():
	}

	<-done
	a.logger.Info("Server stopped gracefully")
	return serveErr
}
