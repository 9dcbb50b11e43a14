package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chronicle-chat/backend/internal/chat"
	"chronicle-chat/backend/internal/dice"
	"chronicle-chat/backend/internal/store"
	"chronicle-chat/backend/pkg/config"
	"chronicle-chat/backend/pkg/logger"
	"chronicle-chat/backend/pkg/router"
	"chronicle-chat/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "env", cfg.Server.Env)

	// Load persisted state
	profiles, err := store.NewProfileStore(cfg.Storage.ProfilesFile)
	if err != nil {
		log.LogError(err, "Failed to load character profiles", "path", cfg.Storage.ProfilesFile)
		os.Exit(1)
	}
	history, err := store.NewHistoryLog(cfg.Storage.HistoryFile)
	if err != nil {
		log.LogError(err, "Failed to load chat history", "path", cfg.Storage.HistoryFile)
		os.Exit(1)
	}
	log.Info("State loaded", "profiles", profiles.Len(), "messages", history.Len())

	metrics := observability.New()
	registry := chat.NewRegistry(profiles, cfg.Chat.StorytellerName)
	coordinator := chat.NewCoordinator(registry, history, dice.NewEngine(), cfg.Chat.MaxDiceCount, log, metrics)

	// Initialize and setup router
	r := router.New(router.Deps{
		Config:      cfg,
		Logger:      log,
		Coordinator: coordinator,
		Profiles:    profiles,
		Metrics:     metrics,
	})
	if err := r.SetupRoutes(); err != nil {
		log.LogError(err, "Failed to set up routes")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
