package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"brain2-extractor/infrastructure/config"
	"brain2-extractor/infrastructure/di"
	"brain2-extractor/interfaces/http/rest"
	"brain2-extractor/interfaces/http/rest/handlers"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()

	logger := container.Logger
	handler := newRouter(container).Setup()

	// No write timeout: session websockets stay open and set their own deadlines
	srv := &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("graphSink", cfg.GraphSink),
			zap.Bool("generation", container.Generator != nil))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Flush open drafts of sessions that never ended
	if err := container.Sessions.Shutdown(shutdownCtx); err != nil {
		logger.Error("Session shutdown incomplete", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}

func newRouter(c *di.Container) *rest.Router {
	var generator handlers.StreamOpener
	if c.Generator != nil {
		generator = c.Generator
	}

	collector := c.Collector
	if !c.Config.EnableMetrics {
		collector = nil
	}

	return rest.NewRouter(rest.RouterConfig{
		EnableCORS:       c.Config.EnableCORS,
		DefaultChunkSize: c.Config.DefaultChunkSize,
		Debug:            c.Config.IsDevelopment(),
		GenerateLimiter:  c.GenerateLimiter,
	}, c.Sessions, generator, collector, c.Tracer, c.Logger)
}
