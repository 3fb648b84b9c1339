// Command originhttpd is an HTTP/1.0 and HTTP/1.1 origin server: it
// serves static files from a document root and delegates dynamic
// requests to plugin handlers loaded from shared objects.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/originhttpd/pkg/originhttpd/config"
	"github.com/yourusername/originhttpd/pkg/originhttpd/logging"
	"github.com/yourusername/originhttpd/pkg/originhttpd/metrics"
	"github.com/yourusername/originhttpd/pkg/originhttpd/server"
)

func main() {
	cfg := config.Default()
	config.RegisterFlags(flag.CommandLine, &cfg)
	flag.Parse()

	if cfg.RootPath == "" {
		log.Fatal("originhttpd: -root is required")
	}

	logger := logging.New(os.Stdout)
	srv := server.New(cfg, logger)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("originhttpd: serve: %v", err)
		}
	case <-ctx.Done():
		log.Printf("originhttpd: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("originhttpd: shutdown: %v", err)
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("originhttpd: metrics listener: %v", err)
	}
}
