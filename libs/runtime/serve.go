package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownHook runs after the server has stopped accepting requests.
type ShutdownHook struct {
	Name string
	Fn   func(context.Context) error
}

// Serve runs srv until ctx is cancelled or the listener fails, then shuts it
// down and runs hooks in order, all sharing one grace period.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger, grace time.Duration, hooks ...ShutdownHook) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("http server error", "err", serveErr)
		}
	}

	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	for _, h := range hooks {
		if err := h.Fn(shutdownCtx); err != nil {
			logger.Error("shutdown hook failed", "hook", h.Name, "err", err)
		}
	}
	logger.Info("http server stopped")
	return serveErr
}
