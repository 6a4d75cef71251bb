package osutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Returns a context that will live until Ctrl+C is pressed
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}

// GracefulStop returns a channel that is closed on the first Ctrl+C and a context that is cancelled
// on the second one. Long running loops check the channel between units of work and pass the
// context to the work itself, so a single Ctrl+C lets the current unit finish.
func GracefulStop() (stop <-chan struct{}, ctx context.Context) {
	stopCh := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		slog.Warn("stopping after the current item, press Ctrl+C again to abort")
		close(stopCh)
		<-sigs
		cancel()
	}()

	return stopCh, ctx
}
