package config

import "time"

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is where the API is reachable from outside; failure alerts link job status
	// pages under it.
	BaseURL string `env:"HTTP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain scopes the session and guest cookies. Empty means the request host.
	CookieDomain string `env:"HTTP_COOKIE_DOMAIN"`

	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`
	// CompressionLevel is a gzip level, clamped to 1..9.
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize clamps the compression level and restores non-positive timeouts to defaults.
func (h *HTTPConfig) Sanitize() {
	h.CompressionLevel = min(max(h.CompressionLevel, 1), 9)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	for _, d := range []struct {
		field *time.Duration
		def   time.Duration
	}{
		{&h.ReadTimeout, 30 * time.Second},
		{&h.WriteTimeout, 30 * time.Second},
		{&h.IdleTimeout, 120 * time.Second},
		{&h.ShutdownTimeout, 10 * time.Second},
	} {
		if *d.field <= 0 {
			*d.field = d.def
		}
	}
}
