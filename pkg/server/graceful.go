// Package server runs the HTTP host with signal handling and graceful
// shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/logging"
)

// ConfigReloadFunc reloads configuration on SIGHUP
type ConfigReloadFunc func() error

// Timeouts for the underlying http.Server
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// DefaultTimeouts leaves Write at zero so SSE streams are not cut off
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:     30 * time.Second,
		Idle:     120 * time.Second,
		Shutdown: 30 * time.Second,
	}
}

// GracefulServer wraps an HTTP server with graceful shutdown
type GracefulServer struct {
	server         *http.Server
	timeouts       Timeouts
	logger         logging.Logger
	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	shutdownDone   chan struct{}
	shutdownErr    error
	configReloadFn ConfigReloadFunc
	onShutdown     []func()
	mu             sync.RWMutex
}

// NewGracefulServer creates a server for handler on addr
func NewGracefulServer(addr string, handler http.Handler, timeouts Timeouts, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	gs := &GracefulServer{
		server: &http.Server{
			Addr:           addr,
			Handler:        handler,
			ReadTimeout:    timeouts.Read,
			WriteTimeout:   timeouts.Write,
			IdleTimeout:    timeouts.Idle,
			MaxHeaderBytes: 1 << 20,
		},
		timeouts:     timeouts,
		logger:       logger.With(logging.Component("server")),
		shutdownCh:   make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
	// Long-lived handlers (event streams) watch this to finish early
	gs.server.BaseContext = func(net.Listener) context.Context {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-gs.shutdownCh
			cancel()
		}()
		return ctx
	}
	return gs
}

// SetTLSConfig makes Run and Serve speak HTTPS. A nil config serves plain
// HTTP.
func (gs *GracefulServer) SetTLSConfig(cfg *tls.Config) {
	gs.server.TLSConfig = cfg
}

// OnShutdown registers fn to run after the listener has drained
func (gs *GracefulServer) OnShutdown(fn func()) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.onShutdown = append(gs.onShutdown, fn)
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives or Shutdown is
// called. SIGHUP reloads configuration.
func (gs *GracefulServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return err
	}
	return gs.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	scheme := "http"
	if gs.server.TLSConfig != nil {
		ln = tls.NewListener(ln, gs.server.TLSConfig)
		scheme = "https"
	}

	errCh := make(chan error, 1)
	go func() {
		gs.logger.Info("http server listening",
			logging.String("addr", ln.Addr().String()),
			logging.String("scheme", scheme))
		if err := gs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			<-gs.shutdownDone
			return gs.shutdownErr
		case <-hup:
			gs.logger.Info("received SIGHUP, reloading configuration")
			_ = gs.ReloadConfig()
		case <-ctx.Done():
			gs.logger.Info("shutdown requested", logging.String("cause", context.Cause(ctx).Error()))
			return gs.Shutdown(gs.timeouts.Shutdown)
		case <-gs.shutdownDone:
			<-errCh
			return gs.shutdownErr
		}
	}
}

// Shutdown stops accepting connections, waits up to timeout for in-flight
// requests and then runs the OnShutdown hooks. Only the first call has any
// effect.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	gs.shutdownOnce.Do(func() {
		defer close(gs.shutdownDone)
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		timer := logging.StartTimer(gs.logger, "graceful shutdown", logging.Duration("timeout", timeout))
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.shutdownErr = err
			timer.EndError(err)
		} else {
			timer.End()
		}

		gs.mu.RLock()
		hooks := gs.onShutdown
		gs.mu.RUnlock()
		for _, fn := range hooks {
			fn()
		}
	})
	return gs.shutdownErr
}

// IsShuttingDown returns true once shutdown has started
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel is closed when shutdown starts
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetConfigReloadFunc sets the SIGHUP handler
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.configReloadFn = fn
}

// ReloadConfig runs the reload function, if any
func (gs *GracefulServer) ReloadConfig() error {
	gs.mu.RLock()
	reloadFn := gs.configReloadFn
	gs.mu.RUnlock()

	if reloadFn == nil {
		gs.logger.Warn("configuration reload requested but not configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		gs.logger.Error("configuration reload failed", logging.Error(err))
		return err
	}
	gs.logger.Info("configuration reloaded")
	return nil
}
