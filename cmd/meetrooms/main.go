package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"

	"github.com/navikt/meetrooms/internal/api"
	"github.com/navikt/meetrooms/internal/auth"
	"github.com/navikt/meetrooms/internal/broadcast"
	"github.com/navikt/meetrooms/internal/config"
	"github.com/navikt/meetrooms/internal/repository"
	"github.com/navikt/meetrooms/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logs.GetLoggerFromString("ERROR").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logs.GetLoggerFromString(cfg.LogLevel)

	// Initialize the repository using the factory
	repo, err := repository.NewRepository(cfg)
	if err != nil {
		log.Error("Failed to initialize repository", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Error closing repository", "error", err)
		}
	}()
	log.Info("Repository ready", "backend", cfg.Backend)

	sse := broadcast.NewSSEBroadcaster(service.NewTopicAuthorizer(repo, repo), log)
	manager := service.NewManager(repo, repo, sse, log)

	scheduler := service.NewScheduler(manager, cfg.Scheduler.Interval, log)

	mux := api.SetupRoutes(api.Dependencies{
		Rooms:     manager,
		Scheduler: scheduler,
		Directory: repo,
		Store:     repo,
		Events:    sse,
		Auth:      auth.NewMiddleware(auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), log),
		Log:       log,
	})

	// Configure the HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.WrapMuxWithMiddleware(mux, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable write timeout for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(ctx)

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Starting meetrooms server", "port", cfg.Port)
		serverErrors <- server.ListenAndServe()
	}()

	// Block until a signal is received or an error occurs
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Error starting server", "error", err)
			os.Exit(1)
		}

	case <-ctx.Done():
		log.Info("Shutting down server...")

		// Close SSE connections first so Shutdown does not wait on them
		sse.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			log.Error("Error shutting down server", "error", err)
			return
		}

		log.Info("Server gracefully stopped")
	}
}
