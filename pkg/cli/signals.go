package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a child of parent that is cancelled on the
// first SIGINT or SIGTERM. A second signal exits the process with
// ExitFailure. The returned stop function releases the signal subscription.
func SetupSignalHandler(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	return notifyContext(parent, logger, os.Exit, os.Interrupt, syscall.SIGTERM)
}

func notifyContext(parent context.Context, logger *slog.Logger, exit func(int), sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, sigs...)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}

		select {
		case sig := <-sigChan:
			logger.Warn("received second signal, exiting immediately", "signal", sig.String())
			exit(ExitFailure)
		case <-parent.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
