package httpx

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
)

// CompressionConfig tunes response compression.
type CompressionConfig struct {
	// Level is the gzip level, 1 (fastest) to 9 (smallest). Zero picks the default.
	Level int
	// MinSize leaves smaller bodies uncompressed. Zero picks the library default.
	MinSize int
}

// compressibleTypes lists what is worth gzipping. Resume downloads are PDFs or Word files
// and are served as is.
var compressibleTypes = []string{
	"application/json",
	"text/plain",
	"text/html",
	"text/csv",
}

// Compression gzips compressible responses for clients that accept it. HEAD requests,
// bodiless statuses and already-encoded responses pass through untouched.
func Compression(cfg CompressionConfig) (func(http.Handler) http.Handler, error) {
	level := cfg.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	minSize := cfg.MinSize
	if minSize == 0 {
		minSize = gzhttp.DefaultMinSize
	}

	wrap, err := gzhttp.NewWrapper(
		gzhttp.CompressionLevel(level),
		gzhttp.MinSize(minSize),
		gzhttp.ContentTypes(compressibleTypes),
	)
	if err != nil {
		return nil, fmt.Errorf("configure compression: %w", err)
	}
	return func(next http.Handler) http.Handler { return wrap(next) }, nil
}
