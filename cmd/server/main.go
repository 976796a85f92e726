// server is the HTTP server binary exposing the normative conflict
// resolution engine: framework storage, conflict detection, strategy
// suggestion and resolution, with an append-only audit trail.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"normlex/internal/api"
	"normlex/internal/audit"
	"normlex/internal/config"
	"normlex/internal/detection"
	"normlex/internal/logging"
	"normlex/internal/registry"
	"normlex/internal/resolution"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		addr       = flag.String("addr", "", "Listen address override, e.g. :8080")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize framework store: %v", err)
	}
	defer func() { _ = store.Close() }()

	var trail *audit.Trail
	if cfg.Audit.Enabled {
		trail, err = audit.NewTrail(cfg.Audit.Directory, audit.Options{
			BufferSize:    cfg.Audit.BufferSize,
			FlushInterval: time.Duration(cfg.Audit.FlushSeconds) * time.Second,
			Retention:     time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour,
		}, logger.WithComponent("audit"))
		if err != nil {
			log.Fatalf("Failed to initialize audit trail: %v", err)
		}
		defer trail.Stop()
	}

	resolver := resolution.NewResolver(
		resolution.WithConfidenceThreshold(cfg.Engine.ConfidenceThreshold),
		resolution.WithRequirementMatchThreshold(cfg.Engine.RequirementMatchThreshold),
		resolution.WithLogger(logger.WithComponent("resolution")),
	)
	detector := detection.NewDetector(
		detection.WithMinConfidence(cfg.Engine.DetectorMinConfidence),
		detection.WithHierarchy(resolver.Hierarchy()),
	)

	router := api.NewRouter(cfg, resolver, detector, store, trail, logger)

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      router.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", listenAddr, "registry", cfg.Registry.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func newStore(cfg *config.Config) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case "sqlite":
		return registry.NewSQLiteStore(cfg.Registry.Path)
	default:
		return registry.NewMemoryStore(), nil
	}
}
