package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"doclens/internal/api/v1/router"
	"doclens/internal/config"
	"doclens/internal/logger"

	"github.com/joho/godotenv"
)

// @title DocLens API
// @version 1.0
// @description DocLens document analysis and subscription API
// @host localhost:8080
// @BasePath /
// @Schemes http https

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Billing settings are guarded per request rather than at boot so the
	// rest of the API stays usable without them. Surface the gap early.
	if missing := cfg.MissingCheckoutConfig(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("Checkout not configured, upgrade requests will fail")
	}
	if missing := cfg.MissingWebhookConfig(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("Webhook secret not configured, billing events will be rejected")
	}

	// 2. Build router (and get DB pool and status refresher)
	r, pool, refresher, err := router.New(cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer pool.Close()

	// 3. Start the background status refresher
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	refresher.Start(ctx)
	defer refresher.Stop()

	// 4. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Start server in a goroutine
	go func() {
		logger.Info().Msgf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s\n", err)
		}
	}()

	// 6. Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
