package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env            string             `yaml:"env"`
	DefaultAccount string             `yaml:"defaultAccount"`
	Server         ServerConfig       `yaml:"server"`
	Logging        LoggingConfig      `yaml:"logging"`
	Instruments    []InstrumentConfig `yaml:"instruments"`
	Watchlist      []WatchlistConfig  `yaml:"watchlist"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	MetricsAddr    string   `yaml:"metricsAddr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type LoggingConfig struct {
	Level   string   `yaml:"level"`  // debug, info, warn, error
	Format  string   `yaml:"format"` // json 或 console
	Outputs []string `yaml:"outputs"`
	File    string   `yaml:"file"`
}

// InstrumentConfig 合约静态信息与演示行情的基准价。
type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol"`
	Exchange   string  `yaml:"exchange"`
	Name       string  `yaml:"name"`
	AssetClass string  `yaml:"assetClass"`
	Currency   string  `yaml:"currency"`
	BasePrice  float64 `yaml:"basePrice"`
}

type WatchlistConfig struct {
	Symbol   string `yaml:"symbol"`
	Exchange string `yaml:"exchange"`
	Account  string `yaml:"account"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("TD_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TD_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("TD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if len(cfg.Logging.Outputs) == 0 {
		cfg.Logging.Outputs = []string{"stdout"}
	}
	if cfg.DefaultAccount == "" && cfg.Env != "" {
		cfg.DefaultAccount = "default"
	}
	for i := range cfg.Instruments {
		if cfg.Instruments[i].Currency == "" {
			cfg.Instruments[i].Currency = "USD"
		}
	}
}
