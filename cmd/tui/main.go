package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/user/silent-god/config"
	"github.com/user/silent-god/internal/game"
	"github.com/user/silent-god/internal/oracle"
	"github.com/user/silent-god/internal/storage"
	"github.com/user/silent-god/internal/tui"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "./config/config.json", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, logs go to a file
	logger, err := fileLogger(filepath.Join(filepath.Dir(cfg.Database.DSN), "tui.log"))
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, closeStore, err := storage.NewStore(cfg.Database)
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	gemini, err := oracle.NewGemini(ctx, cfg.Oracle, logger.Named("oracle"))
	if err != nil {
		fmt.Printf("Error creating oracle: %v\n", err)
		os.Exit(1)
	}
	defer gemini.Close()

	gameManager := game.NewManager(cfg, gemini, store)
	gameManager.SetLogger(logger.Named("world"))
	if cfg.Oracle.EnablePortraits {
		gameManager.SetPortraitGenerator(gemini)
	}
	if err := gameManager.Start(ctx); err != nil {
		fmt.Printf("Error starting world: %v\n", err)
		os.Exit(1)
	}
	defer gameManager.Stop(ctx)

	clock := game.NewClock(gameManager, cfg.Game)
	clock.Start()
	defer clock.Stop()

	if err := tui.Run(gameManager); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
	}
}

func fileLogger(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	return config.Build()
}
