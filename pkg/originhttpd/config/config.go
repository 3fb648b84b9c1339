// Package config holds the immutable, process-wide server configuration.
package config

import (
	"flag"
	"time"
)

const (
	// defaultConnectionTimeout is the initial-idle timer armed at session
	// creation and disarmed on first byte.
	defaultConnectionTimeout = 60 * time.Second

	// defaultKeepAliveTimeout is the inter-request timer armed after each
	// completed response on a keep-alive session.
	defaultKeepAliveTimeout = 10 * time.Second

	// defaultFileChunkSize is the static responder's per-chunk read size.
	defaultFileChunkSize = 4096

	defaultListenAddr   = ":8080"
	defaultMetricsAddr  = ":9090"
	defaultHomepagePath = "index.html"
)

// Config is the immutable, process-wide server configuration.
type Config struct {
	// RootPath is the document root static and plugin targets resolve
	// against.
	RootPath string

	// HomepagePath is appended to RootPath when the request target is
	// exactly "/".
	HomepagePath string

	// ListenAddr is the TCP address the server accepts connections on.
	ListenAddr string

	// ConnectionTimeout is the 60s initial-idle timer duration.
	ConnectionTimeout time.Duration

	// KeepAliveTimeout is the 10s inter-request timer duration.
	KeepAliveTimeout time.Duration

	// FileChunkSize is the static responder's streaming chunk size.
	FileChunkSize int

	// PluginDir, if set, is prepended when resolving dynamic handler
	// paths that the plugin loader opens; empty means resolve relative
	// to RootPath like any other url.
	PluginDir string

	// MetricsAddr is the address the Prometheus /metrics endpoint is
	// served on. Empty disables the metrics listener.
	MetricsAddr string
}

// Default returns a Config with the built-in defaults applied.
func Default() Config {
	return Config{
		HomepagePath:      defaultHomepagePath,
		ListenAddr:        defaultListenAddr,
		ConnectionTimeout: defaultConnectionTimeout,
		KeepAliveTimeout:  defaultKeepAliveTimeout,
		FileChunkSize:     defaultFileChunkSize,
		MetricsAddr:       defaultMetricsAddr,
	}
}

// RegisterFlags binds cfg's fields to flags on fs, pre-populated with
// cfg's current values. Call Default() first if cfg was not already
// initialized.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.RootPath, "root", cfg.RootPath, "document root for static and plugin files")
	fs.StringVar(&cfg.HomepagePath, "homepage", cfg.HomepagePath, "path appended to root for request target \"/\"")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "TCP address to accept connections on")
	fs.DurationVar(&cfg.ConnectionTimeout, "connection-timeout", cfg.ConnectionTimeout, "idle timeout before the first byte arrives")
	fs.DurationVar(&cfg.KeepAliveTimeout, "keepalive-timeout", cfg.KeepAliveTimeout, "idle timeout between keep-alive requests")
	fs.IntVar(&cfg.FileChunkSize, "file-chunk-size", cfg.FileChunkSize, "bytes streamed per write-complete callback for static files")
	fs.StringVar(&cfg.PluginDir, "plugin-dir", cfg.PluginDir, "optional directory dynamic handler paths are resolved under")
	fs.StringVar(&cfg.MetricsAddr, "metrics-listen", cfg.MetricsAddr, "address to serve Prometheus metrics on; empty disables it")
}
