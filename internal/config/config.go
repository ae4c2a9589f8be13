package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DBPath    string `yaml:"db_path"`
	OutputDir string `yaml:"output_dir"`
	// DefaultServer and DefaultToken are connection fallbacks used when an
	// environment name is not present in the environment store.
	DefaultServer string `yaml:"default_server"`
	DefaultToken  string `yaml:"default_token"`
	LogLevel      string `yaml:"log_level"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/metamigrate/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		OutputDir: "migration-output",
		LogLevel:  "info",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// Load ~/.config/metamigrate/config.yaml if it exists
	if err := loadYAMLConfig(cfg); err != nil {
		// YAML config is optional, so we don't fail if it doesn't exist
	}

	// Override with environment variables
	if dbPath := getEnvOrFile("METAMIGRATE_DB_PATH", "METAMIGRATE_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if outputDir := os.Getenv("METAMIGRATE_OUTPUT_DIR"); outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if server := os.Getenv("METAMIGRATE_SERVER"); server != "" {
		cfg.DefaultServer = server
	}
	if token := getEnvOrFile("METAMIGRATE_TOKEN", "METAMIGRATE_TOKEN_FILE"); token != "" {
		cfg.DefaultToken = token
	}
	if logLevel := os.Getenv("METAMIGRATE_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Set defaults if not configured
	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(".metamigrate/metamigrate.db"); err == nil {
			cfg.DBPath = ".metamigrate/metamigrate.db"
		} else {
			// Fall back to user-global database
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "metamigrate", "metamigrate.db")
		}
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/metamigrate/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "metamigrate", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
