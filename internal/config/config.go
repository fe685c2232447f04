package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the analysis console.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Clients  ClientsConfig  `yaml:"clients"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the console listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	HealthAddress   string        `yaml:"healthAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// ClientsConfig groups integrations with remote services.
type ClientsConfig struct {
	Analysis AnalysisClientConfig `yaml:"analysis"`
}

// AnalysisClientConfig configures access to the remote analysis service.
type AnalysisClientConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	CodePath       string        `yaml:"codePath"`
	DatasetPath    string        `yaml:"datasetPath"`
	RepositoryPath string        `yaml:"repositoryPath"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes"`
}

// SessionsConfig bounds the number of mounted screens held by the console.
type SessionsConfig struct {
	MaxSessions int `yaml:"maxSessions"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file, a .env file in the working
// directory, and environment overrides, in that order of precedence (last wins).
func Load(path string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("ANALYSIS_CONSOLE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			HealthAddress:   ":50051",
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Clients: ClientsConfig{
			Analysis: AnalysisClientConfig{
				BaseURL:        "http://127.0.0.1:8000",
				CodePath:       "/api/check/",
				DatasetPath:    "/api/check-dataset/",
				RepositoryPath: "/api/check-repo/",
				Timeout:        2 * time.Minute,
				MaxUploadBytes: 32 << 20,
			},
		},
		Sessions: SessionsConfig{MaxSessions: 1024},
		Logging:  LoggingConfig{Level: "info", JSON: false},
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Clients.Analysis.BaseURL) == "" {
		return errors.New("clients.analysis.baseURL is required")
	}
	if c.Sessions.MaxSessions <= 0 {
		return fmt.Errorf("sessions.maxSessions must be positive, got %d", c.Sessions.MaxSessions)
	}
	if c.Clients.Analysis.MaxUploadBytes <= 0 {
		return fmt.Errorf("clients.analysis.maxUploadBytes must be positive, got %d", c.Clients.Analysis.MaxUploadBytes)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANALYSIS_CONSOLE_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_HEALTH_ADDRESS"); v != "" {
		cfg.Server.HealthAddress = v
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ANALYSIS_SERVICE_BASE_URL"); v != "" {
		cfg.Clients.Analysis.BaseURL = v
	}
	if v := os.Getenv("ANALYSIS_SERVICE_CODE_PATH"); v != "" {
		cfg.Clients.Analysis.CodePath = v
	}
	if v := os.Getenv("ANALYSIS_SERVICE_DATASET_PATH"); v != "" {
		cfg.Clients.Analysis.DatasetPath = v
	}
	if v := os.Getenv("ANALYSIS_SERVICE_REPOSITORY_PATH"); v != "" {
		cfg.Clients.Analysis.RepositoryPath = v
	}
	if v := os.Getenv("ANALYSIS_SERVICE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Clients.Analysis.Timeout = d
		}
	}
	if v := os.Getenv("ANALYSIS_SERVICE_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Clients.Analysis.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sessions.MaxSessions = n
		}
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ANALYSIS_CONSOLE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
