// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Storage and registry endpoints
	Storage  *StorageConfig
	Registry *RegistryConfig

	// Optional table stores, nil when not configured
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Data preparation settings
	TargetColumn     string
	NumericalColumns []string
	RandomState      int64
	SelectK          int

	// Cross-validation settings
	CVFolds   int
	CVWorkers int // -1 means use runtime.NumCPU()

	// Serving
	HTTPAddr   string
	ModelName  string
	ModelStage string

	// Logging
	LogLevel  string
	LogFormat string
}

// DefaultEnvFile is the dotfile read by LoadConfig before the environment.
const DefaultEnvFile = ".env"

// LoadConfig loads configuration from the dotfile and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigFromFile(DefaultEnvFile)
}

// LoadConfigFromFile loads the given dotfile (if present) and then reads the
// configuration from the environment. Variables already set in the process
// environment win over the dotfile.
func LoadConfigFromFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Storage:  LoadStorageConfig(),
		Registry: LoadRegistryConfig(),

		TargetColumn:     getEnv("TARGET_COLUMN", "class"),
		NumericalColumns: getEnvAsStringSlice("NUMERICAL_COLUMNS", []string{"duration", "credit_amount", "age"}),
		RandomState:      int64(getEnvAsInt("RANDOM_STATE", 100)),
		SelectK:          getEnvAsInt("SELECT_K_BEST", 10),

		CVFolds:   getEnvAsInt("CV_FOLDS", 10),
		CVWorkers: getEnvAsInt("CV_WORKERS", -1),

		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		ModelName:  getEnv("MODEL_NAME", ""),
		ModelStage: getEnv("MODEL_STAGE", "Production"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Table stores are optional
	if os.Getenv("SNOWFLAKE_USER") != "" {
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, errors.New("failed to load Snowflake configuration: " + err.Error())
		}
		cfg.Snowflake = snowConfig
	}

	if os.Getenv("POSTGRES_USER") != "" {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
		}
		cfg.Postgres = pgConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Storage == nil {
		return errors.New("storage configuration is required")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Registry == nil || c.Registry.TrackingURI == "" {
		return errors.New("registry tracking URI is required")
	}

	if c.TargetColumn == "" {
		return errors.New("target column cannot be empty")
	}

	for _, col := range c.NumericalColumns {
		if col == c.TargetColumn {
			return fmt.Errorf("target column %q cannot also be a numerical feature", col)
		}
	}

	if c.SelectK <= 0 {
		return errors.New("SELECT_K_BEST must be positive")
	}

	if c.CVFolds < 2 {
		return errors.New("CV_FOLDS must be at least 2")
	}

	if c.CVWorkers == 0 || c.CVWorkers < -1 {
		return errors.New("CV_WORKERS must be -1 or positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice parses a comma-separated variable, dropping empty items
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range strings.Split(value, ",") {
		v = strings.Trim(strings.TrimSpace(v), `"`)
		if v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
