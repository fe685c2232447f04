package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/codecheckerai/analysis-console/internal/config"
)

// Server runs the console HTTP listener and the gRPC health listener.
//
// Browsers only ever reach the HTTP side. The health listener is for
// orchestrators checking grpc.health.v1: it lives on its own port so health checks
// keep answering, with NOT_SERVING, while HTTP connections and WebSocket
// screens drain during Shutdown.
type Server struct {
	cfg        config.ServerConfig
	logger     *slog.Logger
	httpServer *http.Server
	httpLis    net.Listener
	grpcServer *grpc.Server
	grpcLis    net.Listener
	health     *health.Server
}

// NewServer binds both listeners. handler serves the console API.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger, opts ...grpc.ServerOption) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpLis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.HealthAddress)
	if err != nil {
		_ = httpLis.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HealthAddress, err)
	}

	grpcServer, healthSrv := newHealthServer(opts...)
	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
		httpLis:    httpLis,
		grpcServer: grpcServer,
		grpcLis:    grpcLis,
		health:     healthSrv,
	}, nil
}

// newHealthServer builds the health-only gRPC server: grpc.health.v1 reporting
// SERVING for the whole console, reflection for grpcurl, and request metrics.
func newHealthServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	grpc_prometheus.EnableHandlingTimeHistogram()
	srv := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)...)

	checker := health.NewServer()
	checker.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, checker)
	reflection.Register(srv)
	grpc_prometheus.Register(srv)
	return srv, checker
}

// Start serves both listeners until Shutdown. It returns the first serve
// error other than a clean close.
func (s *Server) Start() error {
	if s.httpServer == nil || s.grpcServer == nil {
		return fmt.Errorf("server not initialised")
	}
	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("console HTTP listening", slog.String("address", s.HTTPAddress()))
		if err := s.httpServer.Serve(s.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		s.logger.Info("health gRPC listening", slog.String("address", s.HealthAddress()))
		if err := s.grpcServer.Serve(s.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
			return
		}
		errCh <- nil
	}()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

// Shutdown reports NOT_SERVING, drains HTTP, then stops gRPC, falling back to
// a hard stop once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.health != nil {
		s.health.Shutdown()
	}

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}

	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-ctx.Done():
			s.grpcServer.Stop()
		case <-stopped:
		}
	}
	return httpErr
}

// HTTPAddress is the bound console address.
func (s *Server) HTTPAddress() string {
	if s.httpLis == nil {
		return ""
	}
	return s.httpLis.Addr().String()
}

// HealthAddress is the bound health check address.
func (s *Server) HealthAddress() string {
	if s.grpcLis == nil {
		return ""
	}
	return s.grpcLis.Addr().String()
}

// GracefulTimeout bounds how long Shutdown waits for open screens to drain.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
