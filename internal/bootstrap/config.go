package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/jobmatch/config"
)

// InitLogger installs a JSON logger at info level. It is used until configuration is loaded.
func InitLogger() *slog.Logger {
	return ConfigureLogger(config.LoggingConfig{})
}

// ConfigureLogger installs the process logger described by cfg and returns it.
func ConfigureLogger(cfg config.LoggingConfig) *slog.Logger {
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// LoadConfig reads the optional dotenv files (".env" when none are named) and then parses
// the environment. Missing dotenv files are not an error.
func LoadConfig(dotenvFiles ...string) (config.AppConfig, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.AppConfig{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects an unparsable or empty SERVICES list.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	if _, err := cfg.GetEnabledServices(); err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	return nil
}

// GetEnabledServices lists enabled service names in ValidServiceModes order.
func GetEnabledServices(cfg *config.AppConfig) []string {
	out := []string{}
	if cfg == nil {
		return out
	}
	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		return out
	}
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			out = append(out, string(mode))
		}
	}
	return out
}
