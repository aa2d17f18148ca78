package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the variables read by LoadConfig for the duration of a test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MLFLOW_TRACKING_URI", "MLFLOW_S3_ENDPOINT_URL", "DATASET_STORAGE_URL_PREFIX",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION",
		"TARGET_COLUMN", "NUMERICAL_COLUMNS", "RANDOM_STATE", "SELECT_K_BEST",
		"CV_FOLDS", "CV_WORKERS", "MODEL_NAME", "MODEL_STAGE",
		"SNOWFLAKE_USER", "POSTGRES_USER",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "http://mlflow_server:5050", cfg.Registry.TrackingURI)
	assert.Equal(t, "http://s3:9000", cfg.Storage.EndpointURL)
	assert.Equal(t, "s3://mlops", cfg.Storage.URLPrefix)
	assert.Equal(t, "class", cfg.TargetColumn)
	assert.Equal(t, []string{"duration", "credit_amount", "age"}, cfg.NumericalColumns)
	assert.Equal(t, int64(100), cfg.RandomState)
	assert.Equal(t, 10, cfg.SelectK)
	assert.Equal(t, 10, cfg.CVFolds)
	assert.Equal(t, -1, cfg.CVWorkers)
	assert.Equal(t, "Production", cfg.ModelStage)
	assert.Equal(t, 60*time.Second, cfg.Storage.RequestTimeout)
	assert.Nil(t, cfg.Snowflake)
	assert.Nil(t, cfg.Postgres)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"DATASET_STORAGE_URL_PREFIX=s3://credit/datasets/\n"+
			"NUMERICAL_COLUMNS=duration, age,,\n"+
			"SELECT_K_BEST=5\n"+
			"CV_FOLDS=notanumber\n"), 0o644))
	t.Setenv("SELECT_K_BEST", "7")

	cfg, err := LoadConfigFromFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "s3://credit/datasets", cfg.Storage.URLPrefix)
	assert.Equal(t, []string{"duration", "age"}, cfg.NumericalColumns)
	assert.Equal(t, 7, cfg.SelectK, "process environment wins over the dotfile")
	assert.Equal(t, 10, cfg.CVFolds, "unparsable values fall back to the default")

	bucket, prefix, err := cfg.Storage.PrefixBucket()
	require.NoError(t, err)
	assert.Equal(t, "credit", bucket)
	assert.Equal(t, "datasets", prefix)
	assert.Equal(t, "s3://credit/datasets/data/new.csv", cfg.Storage.RemotePath("/data/new.csv"))
}

func TestLoadConfig_PostgresRequiresPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "scoring")
	t.Setenv("POSTGRES_PASSWORD", "")

	_, err := LoadConfigFromFile("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:      &StorageConfig{URLPrefix: "s3://mlops"},
			Registry:     &RegistryConfig{TrackingURI: "http://mlflow:5050"},
			TargetColumn: "class",
			SelectK:      10,
			CVFolds:      10,
			CVWorkers:    -1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad prefix", func(c *Config) { c.Storage.URLPrefix = "mlops" }},
		{"no bucket", func(c *Config) { c.Storage.URLPrefix = "s3://" }},
		{"no tracking uri", func(c *Config) { c.Registry.TrackingURI = "" }},
		{"empty target", func(c *Config) { c.TargetColumn = "" }},
		{"numerical target", func(c *Config) { c.NumericalColumns = []string{"age", "class"} }},
		{"zero k", func(c *Config) { c.SelectK = 0 }},
		{"one fold", func(c *Config) { c.CVFolds = 1 }},
		{"zero workers", func(c *Config) { c.CVWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := &PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "credit", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=credit sslmode=disable", cfg.ConnectionString())
}
