package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// fakeServer blocks in ListenAndServe until Shutdown succeeds or Close is
// called, like *http.Server. A non-nil listenErr is returned immediately.
type fakeServer struct {
	listenErr   error
	shutdownErr error

	stopped  chan struct{}
	stopOnce sync.Once

	shutdownCalled bool
	closeCalled    bool
}

func newFakeServer(listenErr, shutdownErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, shutdownErr: shutdownErr, stopped: make(chan struct{})}
}

func (f *fakeServer) stop() { f.stopOnce.Do(func() { close(f.stopped) }) }

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopped
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdownCalled = true
	if f.shutdownErr == nil {
		f.stop()
	}
	return f.shutdownErr
}

func (f *fakeServer) Close() error {
	f.closeCalled = true
	f.stop()
	return nil
}

func (f *fakeServer) Addr() string { return ":0" }

func cancelled() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(errors.New("interrupt"))
	return ctx
}

func TestRun_BootstrapFailure(t *testing.T) {
	build := func() (httpServer, func(), error) { return nil, nil, errors.New("no DATABASE_URL") }

	assert.Equal(t, 1, Run(context.Background(), build, zerolog.Nop()))
}

func TestRun(t *testing.T) {
	tests := []struct {
		name         string
		server       *fakeServer
		ctx          context.Context
		wantCode     int
		wantShutdown bool
		wantClose    bool
	}{
		{
			name:         "graceful shutdown on cancel",
			server:       newFakeServer(nil, nil),
			ctx:          cancelled(),
			wantCode:     0,
			wantShutdown: true,
		},
		{
			name:     "listener crash",
			server:   newFakeServer(errors.New("address in use"), nil),
			ctx:      context.Background(),
			wantCode: 1,
		},
		{
			name:         "shutdown failure forces close",
			server:       newFakeServer(nil, errors.New("deadline exceeded")),
			ctx:          cancelled(),
			wantCode:     1,
			wantShutdown: true,
			wantClose:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned := false
			build := func() (httpServer, func(), error) {
				return tt.server, func() { cleaned = true }, nil
			}

			got := Run(tt.ctx, build, zerolog.Nop())

			assert.Equal(t, tt.wantCode, got)
			assert.Equal(t, tt.wantShutdown, tt.server.shutdownCalled)
			assert.Equal(t, tt.wantClose, tt.server.closeCalled)
			assert.True(t, cleaned)
		})
	}
}

func TestRun_CleanupWaitsForListener(t *testing.T) {
	srv := newFakeServer(nil, nil)
	listenerDone := false
	build := func() (httpServer, func(), error) {
		return srv, func() {
			select {
			case <-srv.stopped:
				listenerDone = true
			default:
			}
		}, nil
	}

	assert.Equal(t, 0, Run(cancelled(), build, zerolog.Nop()))
	assert.True(t, listenerDone, "cleanup ran before the listener stopped")
}
