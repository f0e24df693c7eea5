package config

import (
	"errors"
	"fmt"
)

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug/info/warn/error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is not json or console", cfg.Logging.Format)
	}
	if len(cfg.Instruments) == 0 {
		return errors.New("instruments config is required")
	}
	seen := make(map[string]bool, len(cfg.Instruments))
	for _, ins := range cfg.Instruments {
		if ins.Symbol == "" || ins.Exchange == "" {
			return errors.New("instrument symbol and exchange are required")
		}
		key := ins.Symbol + "@" + ins.Exchange
		if seen[key] {
			return fmt.Errorf("instrument %s is duplicated", key)
		}
		seen[key] = true
		if ins.BasePrice < 0 {
			return fmt.Errorf("instrument %s basePrice must be >= 0", key)
		}
	}
	for _, w := range cfg.Watchlist {
		if w.Symbol == "" || w.Exchange == "" {
			return errors.New("watchlist symbol and exchange are required")
		}
	}
	return nil
}
