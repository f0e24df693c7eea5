package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
env: test
server:
  addr: ":8081"
  metricsAddr: ":9101"
instruments:
  - symbol: AAPL
    exchange: NASDAQ
    name: Apple Inc.
    basePrice: 190.5
  - symbol: BTCUSD
    exchange: COINBASE
    currency: USD
    basePrice: 64000
watchlist:
  - symbol: AAPL
    exchange: NASDAQ
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.Server.Addr != ":8081" {
		t.Fatalf("expected addr :8081 got %s", cfg.Server.Addr)
	}
	if len(cfg.Instruments) != 2 {
		t.Fatalf("expected 2 instruments got %d", len(cfg.Instruments))
	}
	// 默认值
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging, got %+v", cfg.Logging)
	}
	if cfg.DefaultAccount != "default" {
		t.Fatalf("expected default account, got %q", cfg.DefaultAccount)
	}
	if cfg.Instruments[0].Currency != "USD" {
		t.Fatalf("expected default currency USD got %s", cfg.Instruments[0].Currency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"缺少env":  "server:\n  addr: \":8080\"\ninstruments:\n  - symbol: A\n    exchange: X\n",
		"缺少合约":   "env: test\n",
		"重复合约":   "env: test\ninstruments:\n  - symbol: A\n    exchange: X\n  - symbol: A\n    exchange: X\n",
		"非法日志级别": "env: test\nlogging:\n  level: verbose\ninstruments:\n  - symbol: A\n    exchange: X\n",
		"负基准价":   "env: test\ninstruments:\n  - symbol: A\n    exchange: X\n    basePrice: -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("TD_SERVER_ADDR", ":18080")
	t.Setenv("TD_LOG_LEVEL", "debug")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load err: %v", err)
	}
	if cfg.Server.Addr != ":18080" {
		t.Fatalf("expected env override addr, got %s", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env override level, got %s", cfg.Logging.Level)
	}
}

func TestLoadWithEnvOverridesInvalid(t *testing.T) {
	t.Setenv("TD_LOG_LEVEL", "verbose")
	if _, err := LoadWithEnvOverrides(writeConfig(t, sampleYAML)); err == nil {
		t.Fatalf("expected error for invalid override")
	}
}
