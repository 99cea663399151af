package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application
type Config struct {
	// Oracle configuration
	Oracle OracleConfig `json:"oracle"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Game configuration
	Game GameConfig `json:"game"`

	// WhatsApp configuration
	WhatsApp WhatsAppConfig `json:"whatsapp"`

	// Server configuration
	Server ServerConfig `json:"server"`
}

// OracleConfig holds the generative model configuration
type OracleConfig struct {
	// API key for the Gemini API. Usually provided through the environment.
	APIKey string `json:"api_key" env:"GEMINI_API_KEY"`

	// Text model used to advance the simulation
	Model string `json:"model" env:"ORACLE_MODEL"`

	// Image model used for portraits
	ImageModel string `json:"image_model" env:"ORACLE_IMAGE_MODEL"`

	// Portrait generation is expensive and off by default
	EnablePortraits bool `json:"enable_portraits" env:"ORACLE_ENABLE_PORTRAITS"`
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	// Database driver (json, sqlite)
	Driver string `json:"driver" env:"DATABASE_DRIVER"`

	// Database connection string or file path
	DSN string `json:"dsn" env:"DATABASE_DSN"`
}

// GameConfig holds game specific configuration
type GameConfig struct {
	// Real seconds that make up one simulated year
	SecondsPerYear int `json:"seconds_per_year"`

	// Years advanced by an autonomous or queued turn
	TickYears int `json:"tick_years"`

	// Years advanced by an explicit submit
	SubmitYears int `json:"submit_years"`

	// Years advanced after a petition is answered
	DecisionYears int `json:"decision_years"`

	// Seconds before an unanswered petition resolves to silence
	DecisionTimeout int `json:"decision_timeout"`

	// Seconds after which a stuck petition answer is unlocked again
	DecisionSafetyTimeout int `json:"decision_safety_timeout"`

	// Clock resolution in milliseconds
	TickInterval int `json:"tick_interval"`

	// Debounce before an autosave in milliseconds
	AutosaveDelay int `json:"autosave_delay"`

	// Optional YAML genesis seed. Empty uses the built-in world.
	SeedPath string `json:"seed_path" env:"GAME_SEED_PATH"`

	// Number of chronicle entries sent to the oracle
	RecentLogWindow int `json:"recent_log_window"`

	// Dead persons are still sent to the oracle for this many years
	DeathRecencyYears int `json:"death_recency_years"`

	// Incoming biographies must be longer than this to replace the old one
	BiographyThreshold int `json:"biography_threshold"`
}

// WhatsAppConfig holds WhatsApp specific configuration
type WhatsAppConfig struct {
	// Bridge is optional
	Enabled bool `json:"enabled" env:"WHATSAPP_ENABLED"`

	// Path to store WhatsApp session data
	StoreDir string `json:"store_dir"`

	// Client device name
	ClientName string `json:"client_name"`

	// Phone numbers that receive petitions
	Prophets []string `json:"prophets" env:"WHATSAPP_PROPHETS"`
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	// Server port
	Port string `json:"port" env:"PORT"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Oracle: OracleConfig{
			Model:      "gemini-2.5-flash",
			ImageModel: "gemini-2.5-flash-image",
		},
		Database: DatabaseConfig{
			Driver: "json",
			DSN:    "./data/save.json",
		},
		Game: GameConfig{
			SecondsPerYear:        6,
			TickYears:             5,
			SubmitYears:           10,
			DecisionYears:         2,
			DecisionTimeout:       30,
			DecisionSafetyTimeout: 5,
			TickInterval:          100,
			AutosaveDelay:         1000,
			RecentLogWindow:       15,
			DeathRecencyYears:     20,
			BiographyThreshold:    50,
		},
		WhatsApp: WhatsAppConfig{
			StoreDir:   "./whatsapp-store",
			ClientName: "SILENT GOD",
		},
		Server: ServerConfig{
			Port:     "8080",
			LogLevel: "info",
		},
	}
}

// CycleDuration is the real time the clock needs to reach 100%
func (g GameConfig) CycleDuration() time.Duration {
	return time.Duration(g.SecondsPerYear*g.TickYears) * time.Second
}

// TickDuration is the clock resolution
func (g GameConfig) TickDuration() time.Duration {
	return time.Duration(g.TickInterval) * time.Millisecond
}

// LoadConfig loads configuration from a file and applies environment overrides
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return config, err
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create default config file
		if err := SaveConfig(config, path); err != nil {
			return config, err
		}
		return config, ApplyEnv(&config)
	}

	// Read config file
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return config, err
	}

	return config, ApplyEnv(&config)
}

// ApplyEnv overlays environment variables on top of the loaded configuration
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Create or truncate file
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	// Write config to file. The API key never goes to disk.
	config.Oracle.APIKey = ""
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return err
	}

	return nil
}
