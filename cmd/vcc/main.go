// Package main implements the Vibration Control Container entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vibe-control/vcc/internal/api"
	"github.com/vibe-control/vcc/internal/audit"
	"github.com/vibe-control/vcc/internal/auth"
	"github.com/vibe-control/vcc/internal/config"
	"github.com/vibe-control/vcc/internal/dispatch"
	"github.com/vibe-control/vcc/internal/pattern"
	"github.com/vibe-control/vcc/internal/radio"
	"github.com/vibe-control/vcc/internal/status"
)

const Version = "1.0.0"

func main() {
	log.Printf("Starting Vibration Control Container v%s", Version)

	// Step 1: Load configuration.
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	// Step 2: Initialize audit logger.
	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	log.Println("Audit logger initialized")

	// Step 3: Initialize the broadcast pipeline. Without a radio
	// attached the logging driver stands in.
	transmitter := radio.NewTransmitter(radio.LoggingDriver{}, cfg.Radio.QueueSize, nil)
	log.Println("Radio transmitter initialized")

	// Step 4: Create the dispatch engine.
	engine := dispatch.NewEngine(transmitter, cfg.Radio.StopHold())
	engine.SetAuditLogger(auditLogger)

	// Step 5: Initialize the status hub and wire it to the engine.
	statusHub := status.NewHub(cfg.Status, engine.State)
	engine.SetStatusSink(statusHub)
	log.Println("Status hub initialized")

	// Step 6: Load the pattern library. Bad files are reported and
	// skipped; the catalog survives.
	store := pattern.NewStore(cfg.Patterns.Dir)
	loaded, failures := store.LoadDir()
	for name, err := range failures {
		log.Printf("Pattern %s skipped: %v", name, err)
	}
	log.Printf("Pattern library loaded: %d patterns from %s", loaded, cfg.Patterns.Dir)
	statusHub.SetCatalogProvider(func() []string {
		patterns := store.Catalog()
		names := make([]string, 0, len(patterns))
		for _, pat := range patterns {
			names = append(names, pat.DisplayName())
		}
		return names
	})

	// Step 7: Create the API server, with auth when a secret is set.
	var server *api.Server
	if cfg.Auth.Secret != "" {
		verifier, err := auth.NewVerifier(cfg.Auth.Secret)
		if err != nil {
			log.Fatalf("Failed to initialize token verifier: %v", err)
		}
		server = api.NewServerWithAuth(engine, statusHub, store, auth.NewMiddleware(verifier),
			cfg.Listen.ReadTimeout(), cfg.Listen.WriteTimeout(), cfg.Listen.IdleTimeout())
		log.Println("API server created (auth enabled)")
	} else {
		server = api.NewServer(engine, statusHub, store,
			cfg.Listen.ReadTimeout(), cfg.Listen.WriteTimeout(), cfg.Listen.IdleTimeout())
		log.Println("API server created (auth disabled)")
	}
	server.SetBusyRetryHint(cfg.Radio.BusyBackoff())

	// Step 8: Start the HTTP server.
	log.Printf("Starting HTTP server on %s", cfg.Listen.Addr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Listen.Addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Printf("Vibration Control Container started successfully")
	log.Printf("Command endpoint: http://localhost%s/API/{strength}-{duration}{unit}", cfg.Listen.Addr)
	log.Printf("API base URL: http://localhost%s/api/v1", cfg.Listen.Addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Listen.ShutdownTimeout())
	defer cancel()

	// Fail-safe: the device is commanded to zero before anything else
	// shuts down.
	if err := engine.Stop(ctx, dispatch.SourceStop); err != nil {
		log.Printf("Error issuing fail-safe stop: %v", err)
	}
	log.Println("Fail-safe stop issued")

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	statusHub.Stop()
	log.Println("Status hub stopped")

	transmitter.Close()
	log.Println("Radio transmitter stopped")

	if err := auditLogger.Close(); err != nil {
		log.Printf("Error closing audit logger: %v", err)
	}
	log.Println("Audit logger closed")

	log.Println("Vibration Control Container shutdown complete")
}
