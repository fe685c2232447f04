package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codecheckerai/analysis-console/internal/api"
	"github.com/codecheckerai/analysis-console/internal/config"
	"github.com/codecheckerai/analysis-console/internal/metrics"
	"github.com/codecheckerai/analysis-console/internal/repo"
	"github.com/codecheckerai/analysis-console/internal/services"
	"github.com/codecheckerai/analysis-console/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	logger.Info("starting analysis console",
		slog.String("address", cfg.Server.Address),
		slog.String("analysis_service", cfg.Clients.Analysis.BaseURL),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	client := repo.NewAnalysisClient(
		cfg.Clients.Analysis.BaseURL,
		cfg.Clients.Analysis.CodePath,
		cfg.Clients.Analysis.DatasetPath,
		cfg.Clients.Analysis.RepositoryPath,
		cfg.Clients.Analysis.Timeout,
	)

	console, err := services.NewConsoleService(logger, client, services.Options{
		MaxSessions:    cfg.Sessions.MaxSessions,
		MaxUploadBytes: cfg.Clients.Analysis.MaxUploadBytes,
	})
	if err != nil {
		logger.Error("failed to create console service", slog.Any("error", err))
		os.Exit(1)
	}
	defer console.Shutdown()

	router := api.NewRouter(console, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Clients.Analysis.MaxUploadBytes,
		Logger:         logger,
	})

	server, err := api.NewServer(cfg.Server, router, logger)
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("analysis console stopped", slog.Duration("p95_round_trip", console.LatencyP95()))
}
