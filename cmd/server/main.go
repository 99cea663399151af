package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver for the WhatsApp device store
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/api"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/oracle"
	"github.com/user/silent-god/internal/storage"
	"github.com/user/silent-god/internal/whatsapp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "./config/config.json", "Path to configuration file")
	flag.Parse()

	// A missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		setupLogger("info").Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := setupLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	ctx := context.Background()

	store, closeStore, err := storage.NewStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer closeStore()

	gemini, err := oracle.NewGemini(ctx, cfg.Oracle, logger.Named("oracle"))
	if err != nil {
		logger.Fatal("Failed to create oracle", zap.Error(err))
	}
	defer gemini.Close()

	gameManager := game.NewManager(cfg, gemini, store)
	gameManager.SetLogger(logger.Named("world"))
	if cfg.Oracle.EnablePortraits {
		gameManager.SetPortraitGenerator(gemini)
	}

	handler := api.NewHandler(gameManager, logger.Named("api"))

	var clientManager *whatsapp.ClientManager
	if cfg.WhatsApp.Enabled {
		clientManager = whatsapp.NewClientManager(gameManager, cfg, logger.Named("whatsapp"))
		sessionManager := whatsapp.NewSessionManager(cfg.WhatsApp.StoreDir, logger.Named("whatsapp"))
		qrManager := whatsapp.NewQRCodeManager(clientManager, sessionManager, cfg, logger.Named("whatsapp"))

		// Connect GameManager with ClientManager using the MessageSender interface
		gameManager.SetMessageSender(clientManager)
		gameManager.SetProphets(cfg.WhatsApp.Prophets)
		handler.WithWhatsApp(qrManager, sessionManager, clientManager)
	}

	if err := gameManager.Start(ctx); err != nil {
		logger.Fatal("Failed to start world", zap.Error(err))
	}

	clock := game.NewClock(gameManager, cfg.Game)
	clock.Start()

	server := setupHTTPServer(cfg, handler)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	clock.Stop()
	if clientManager != nil {
		clientManager.DisconnectAll()
	}
	gameManager.Stop(shutdownCtx)
	logger.Info("Shutdown complete")
}

func setupLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, _ := config.Build()
	return logger
}

func setupHTTPServer(cfg config.Config, handler *api.Handler) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	handler.Routes(router)

	return &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
}
