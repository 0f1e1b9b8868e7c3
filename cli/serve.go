package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
	"go.hackfix.me/strata/web/server"
)

// Serve applies outstanding migrations and starts the web server.
type Serve struct {
	Address string `arg:"" optional:"" help:"[host]:port to listen on. Default: ${defaultAddress}"`
}

// Run the serve command.
func (c *Serve) Run(appCtx *actx.Context) error {
	runner, ledger, err := newMigrationRunner(appCtx)
	if err != nil {
		return err
	}

	metrics := server.NewMetrics()
	summary, err := runner.Apply(appCtx.Ctx, migrationLayers(appCtx))
	metrics.ObservePass(summary, err)
	if err != nil {
		return migrationError(err)
	}
	appCtx.Logger.Info("database migrations are up to date",
		"applied", summary.Applied(), "duration", summary.Duration)

	srv := server.New(appCtx, appCtx.Config.Server.Address.V, server.Deps{
		Ledger:  ledger,
		DB:      appCtx.DB,
		Metrics: metrics,
		Summary: summary,
	})

	// Gracefully shutdown the server if a process signal is received, or the
	// main context is done.
	// See https://dev.to/mokiat/proper-http-shutdown-in-go-3fji
	srvDone := make(chan error, 1)
	go func() {
		srvErr := srv.ListenAndServe()
		appCtx.Logger.Debug("web server shutdown")
		srvDone <- srvErr
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case s := <-sigCh:
		appCtx.Logger.Debug("process received signal", "signal", s)
	case <-appCtx.Ctx.Done():
		appCtx.Logger.Debug("app context is done")
	case srvErr := <-srvDone:
		if srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return aerrors.NewWithCause("web server error", srvErr, "address", srv.Addr)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), appCtx.Config.Server.ShutdownTimeout.V)
	defer cancel()
	if err = srv.Shutdown(ctx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed shutting down web server: %w", err)
		}
		aerrors.Log(aerrors.NewWithCause("web server didn't shut down in time", err,
			"timeout", appCtx.Config.Server.ShutdownTimeout.V))
	}

	return nil
}
