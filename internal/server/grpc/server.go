package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rzbill/tideline/internal/runtime"
	logpkg "github.com/rzbill/tideline/pkg/log"
)

// HealthPollInterval is how often Watch subscribers see a fresh status.
const HealthPollInterval = 5 * time.Second

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	log    logpkg.Logger
	health *healthSvc
	grpc   *grpc.Server
	lis    net.Listener
}

// New constructs a gRPC server and registers services.
func New(rt *runtime.Runtime, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.Nop()
	}
	logger = logger.With(logpkg.Component("grpc"))
	s := &Server{rt: rt, log: logger, health: newHealthSvc(rt, logger), grpc: grpc.NewServer(opts...)}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.refresh(context.Background())
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.log.Info("grpc.listen", logpkg.Str("addr", l.Addr().String()))
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.health.poll(pollCtx, HealthPollInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
