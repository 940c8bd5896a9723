package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// PostgresDSN/RedisURL empty means in-memory adapters; local runs and
	// tests need no backing stores.
	PostgresDSN     string
	PostgresMaxConn int32
	RedisURL        string

	CatalogGRPCURL string

	ContractRef     string
	DefaultCurrency string

	IdempotencyTTL       time.Duration
	CallTimeout          time.Duration
	OutboxFlushBatchSize int
	ConsumerPollInterval time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Storage struct {
		PostgresDSN     string `yaml:"postgres_dsn"`
		PostgresMaxConn int    `yaml:"postgres_max_conns"`
		RedisURL        string `yaml:"redis_url"`
	} `yaml:"storage"`
	Dependencies struct {
		CatalogGRPCURL string `yaml:"catalog_grpc_url"`
	} `yaml:"dependencies"`
	Chain struct {
		ContractRef     string `yaml:"contract_ref"`
		DefaultCurrency string `yaml:"default_currency"`
	} `yaml:"chain"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "M47-Asset-Purchase-Service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		DefaultCurrency:      "USD",
		IdempotencyTTL:       7 * 24 * time.Hour,
		CallTimeout:          30 * time.Second,
		OutboxFlushBatchSize: 100,
		ConsumerPollInterval: 2 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.PostgresDSN = f.Storage.PostgresDSN
		if f.Storage.PostgresMaxConn > 0 {
			cfg.PostgresMaxConn = int32(f.Storage.PostgresMaxConn)
		}
		cfg.RedisURL = f.Storage.RedisURL
		cfg.CatalogGRPCURL = f.Dependencies.CatalogGRPCURL
		if f.Chain.ContractRef != "" {
			cfg.ContractRef = f.Chain.ContractRef
		}
		if f.Chain.DefaultCurrency != "" {
			cfg.DefaultCurrency = f.Chain.DefaultCurrency
		}
	}

	cfg.PostgresDSN = envOrDefault("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.CatalogGRPCURL = envOrDefault("CATALOG_GRPC_URL", cfg.CatalogGRPCURL)
	cfg.ContractRef = envOrDefault("LICENSE_CONTRACT_REF", cfg.ContractRef)
	cfg.DefaultCurrency = envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.CallTimeout = time.Duration(envInt("CALL_TIMEOUT_SECONDS", int(cfg.CallTimeout.Seconds()))) * time.Second
	cfg.OutboxFlushBatchSize = envInt("OUTBOX_FLUSH_BATCH", cfg.OutboxFlushBatchSize)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
