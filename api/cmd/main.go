package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

const shutdownTimeout = 15 * time.Second

// httpServer is what Run needs from *http.Server; tests pass a fake.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
	Addr() string
}

type realServer struct{ *http.Server }

func (r realServer) Addr() string { return r.Server.Addr }

type serverBuilder func() (httpServer, func(), error)

// Run serves until ctx is cancelled or the listener fails and returns the
// process exit code. Cleanup runs only after the listener has returned, so
// in-flight requests never see closed dependencies.
func Run(ctx context.Context, build serverBuilder, lg zerolog.Logger) int {
	srv, cleanup, err := build()
	if err != nil {
		lg.Error().Err(err).Msg("bootstrap failed")
		return 1
	}
	defer cleanup()

	served := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr()).Msg("listening")
		served <- srv.ListenAndServe()
	}()

	select {
	case err := <-served:
		lg.Error().Err(err).Msg("listener stopped")
		return 1
	case <-ctx.Done():
		lg.Info().AnErr("cause", context.Cause(ctx)).Msg("shutting down")
	}

	code := 0
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("graceful shutdown failed, closing connections")
		_ = srv.Close()
		code = 1
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Error().Err(err).Msg("listener error during shutdown")
		code = 1
	}

	lg.Info().Int("exit_code", code).Msg("shutdown complete")
	return code
}

func buildFromBootstrap() (httpServer, func(), error) {
	srv, cleanup, err := bootstrap.NewServer()
	if err != nil {
		return nil, nil, err
	}
	return realServer{srv}, cleanup, nil
}

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, buildFromBootstrap, logger.Logger)
	stop()
	os.Exit(code)
}
