package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRunsHooksInOrderAfterCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, srv, logger, time.Second,
			ShutdownHook{Name: "first", Fn: func(context.Context) error { order = append(order, "first"); return nil }},
			ShutdownHook{Name: "second", Fn: func(context.Context) error { order = append(order, "second"); return errors.New("boom") }},
		)
	}()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestServeReturnsListenError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &http.Server{Addr: "127.0.0.1:-1"}

	err := Serve(context.Background(), srv, logger, time.Second)
	assert.Error(t, err)
}
