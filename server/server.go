// Package server exposes a running runtime to observers. It serves the
// Connect observer endpoints and the gRPC health service on one port.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/chazu/enigma/crashdump"
	"github.com/chazu/enigma/vm"
)

var log = commonlog.GetLogger("enigma.server")

// ObserverServer serves introspection of a State and its Pool.
// Connect (HTTP/JSON and binary) handles the observer service; requests with
// a gRPC content type for the health and reflection services go to a gRPC
// server sharing the same listener.
type ObserverServer struct {
	observer *ObserverService
	health   *health.Server
	grpc     *grpc.Server
	mux      *http.ServeMux
	http     *http.Server

	stopWatcher func()
}

// ServerOption configures an ObserverServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	dumps          *crashdump.Store
	healthInterval time.Duration
}

// WithCrashdumps makes stored crash dumps available through ListCrashDumps.
func WithCrashdumps(store *crashdump.Store) ServerOption {
	return func(c *serverConfig) { c.dumps = store }
}

// WithHealthInterval sets how often the pool is polled for the health
// service. The default is one second.
func WithHealthInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.healthInterval = d }
}

// New creates an ObserverServer for st and pool.
func New(st *vm.State, pool *vm.Pool, opts ...ServerOption) *ObserverServer {
	cfg := &serverConfig{healthInterval: time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &ObserverServer{
		observer: NewObserverService(st, pool, cfg.dumps),
		health:   health.NewServer(),
		grpc:     grpc.NewServer(),
		mux:      http.NewServeMux(),
	}

	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.observer.Register(s.mux)

	s.stopWatcher = s.startHealthWatcher(pool, cfg.healthInterval)
	return s
}

// Handler returns the combined HTTP handler, speaking HTTP/2 without TLS.
func (s *ObserverServer) Handler() http.Handler {
	return h2c.NewHandler(http.HandlerFunc(s.route), &http2.Server{})
}

func (s *ObserverServer) route(w http.ResponseWriter, r *http.Request) {
	if r.ProtoMajor == 2 && isGRPCOnly(r) {
		s.grpc.ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// isGRPCOnly reports whether r targets a service only the gRPC server knows.
func isGRPCOnly(r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc") {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/grpc.health.v1.") ||
		strings.HasPrefix(r.URL.Path, "/grpc.reflection.")
}

// ListenAndServe starts the HTTP server on the given address and blocks until
// it is shut down. The address should be in the form "host:port" or ":port".
func (s *ObserverServer) ListenAndServe(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}

	log.Notice("observer listening", "address", addr)
	log.Info("observer endpoints",
		"connect", "http://"+addr+ObserverServiceName,
		"grpc", "grpc://"+addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts down the server.
func (s *ObserverServer) Stop() {
	if s.stopWatcher != nil {
		s.stopWatcher()
	}
	s.health.Shutdown()
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			log.Warning("observer shutdown", "error", err.Error())
		}
	}
	s.grpc.Stop()
}
