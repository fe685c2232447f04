package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/codecheckerai/analysis-console/internal/config"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

func TestServerServesHTTPAndHealth(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("console"))
	})
	srv, err := NewServer(config.ServerConfig{
		Address:         "127.0.0.1:0",
		HealthAddress:   "127.0.0.1:0",
		GracefulTimeout: time.Second,
	}, handler, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	started := make(chan error, 1)
	go func() { started <- srv.Start() }()

	resp, err := http.Get("http://" + srv.HTTPAddress() + "/")
	if err != nil {
		t.Fatalf("http get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "console" {
		t.Fatalf("unexpected body %q", body)
	}

	conn, err := grpc.NewClient(srv.HealthAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	check, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if check.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status %v", check.GetStatus())
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), srv.GracefulTimeout())
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	after, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check after shutdown: %v", err)
	}
	if after.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("health should report NOT_SERVING after shutdown, got %v", after.GetStatus())
	}
	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("start did not return after shutdown")
	}
}
