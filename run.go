package bedrock

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run sets up all plugins, starts the HTTP server and blocks until the
// process receives SIGINT/SIGTERM, Stop is called, or the server fails.
// Plugin setup is fail-open: a failed plugin is logged and reflected in
// the readiness endpoint, but the server still serves traffic so that
// health probes and unaffected routes keep working.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with a caller-supplied lifecycle context.
func (a *App) RunContext(ctx context.Context) error {
	setupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	ready := a.manager.Setup(setupCtx, a.cfg)
	cancel()
	if !ready {
		a.log.Warn("starting in degraded mode, one or more plugins failed setup")
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.teardown()
		return err
	}

	a.log.Info("server started",
		"addr", ln.Addr().String(),
		"app", a.cfg.AppName,
		"version", a.cfg.AppVersion,
		"environment", a.cfg.Environment,
		"ready", ready,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case <-a.done:
		a.log.Info("stop requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	if err := a.teardown(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	a.log.Info("server stopped")
	return runErr
}

// Stop triggers a graceful shutdown from another goroutine. Safe to call
// any number of times.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.done) })
}

// teardown releases plugin resources in reverse registration order.
// Individual failures are logged by the manager; shutdown proceeds
// regardless.
func (a *App) teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	a.manager.Teardown(ctx)
	return nil
}
