package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// errInterrupted is the cancel cause after SIGINT or SIGTERM.
var errInterrupted = errors.New("interrupted")

// shutdownContext returns a context that is canceled with errInterrupted on
// the first SIGINT/SIGTERM and force-exits on the second. Canceling a sign-in
// closes its redirect listener and discards the verifier; the second signal
// is for when that teardown hangs.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, canceling",
				slog.String("signal", sig.String()),
			)
			cancel(fmt.Errorf("%w by %s", errInterrupted, sig))
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit",
				slog.String("signal", sig.String()),
			)
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
