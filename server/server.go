// Package server exposes an evaluator over gRPC, Connect and LSP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"

	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/wire"
)

var log = commonlog.GetLogger("dbgeval.server")

// Server serves one evaluator over Connect (HTTP) and gRPC.
type Server struct {
	pool *Pool
	svc  *EvalService
	mux  *http.ServeMux

	mu   sync.Mutex
	http *http.Server
	grpc *grpc.Server
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	workers     int
	grpcOptions []grpc.ServerOption
}

// WithWorkers sets the number of evaluation workers.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithGRPCOptions passes options through to the gRPC server.
func WithGRPCOptions(opts ...grpc.ServerOption) ServerOption {
	return func(c *serverConfig) { c.grpcOptions = append(c.grpcOptions, opts...) }
}

// New creates a Server evaluating through ev against target. scope
// supplies type names and the procedure for returned programs.
func New(ev *eval.Evaluator, scope *debuginfo.Scope, target bytecode.Target, opts ...ServerOption) *Server {
	cfg := &serverConfig{workers: 4}
	for _, opt := range opts {
		opt(cfg)
	}

	pool := NewPool(ev, cfg.workers)
	s := &Server{
		pool: pool,
		svc:  NewEvalService(pool, scope, target),
		mux:  http.NewServeMux(),
	}
	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(
		EvaluateProcedure,
		s.svc.Evaluate,
		connect.WithCodec(wire.Codec{}),
	))
	s.grpc = NewGRPCServer(s.svc, cfg.grpcOptions...)
	return s
}

// Handler returns the Connect HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Service returns the evaluation service.
func (s *Server) Service() *EvalService {
	return s.svc
}

// ListenAndServe serves Connect on addr until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.mux}
	s.mu.Lock()
	s.http = hs
	s.mu.Unlock()

	log.Noticef("connect listening on http://%s%s", addr, EvaluateProcedure)
	if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeGRPC serves gRPC on addr until Stop is called.
func (s *Server) ServeGRPC(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Noticef("grpc listening on %s", lis.Addr())
	return s.ServeGRPCListener(lis)
}

// ServeGRPCListener serves gRPC on an existing listener.
func (s *Server) ServeGRPCListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop shuts down both transports and the worker pool.
func (s *Server) Stop() {
	s.mu.Lock()
	hs := s.http
	s.mu.Unlock()
	if hs != nil {
		if err := hs.Shutdown(context.Background()); err != nil {
			log.Warningf("http shutdown: %s", err)
		}
	}
	s.grpc.GracefulStop()
	s.pool.Stop()
}

// NewConnectClient returns a Connect client for a server at baseURL.
func NewConnectClient(httpClient connect.HTTPClient, baseURL string) *connect.Client[wire.EvaluateRequest, wire.EvaluateResponse] {
	return connect.NewClient[wire.EvaluateRequest, wire.EvaluateResponse](
		httpClient,
		baseURL+EvaluateProcedure,
		connect.WithCodec(wire.Codec{}),
	)
}
