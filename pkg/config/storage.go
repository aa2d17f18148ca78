// pkg/config/storage.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// StorageConfig holds the S3-compatible object store parameters
type StorageConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string // MLFLOW_S3_ENDPOINT_URL, e.g. a MinIO service
	Region          string
	URLPrefix       string // DATASET_STORAGE_URL_PREFIX, e.g. s3://mlops
	UsePathStyle    bool

	// Per-request timeout for object operations
	RequestTimeout time.Duration
}

// RegistryConfig holds the model registry parameters
type RegistryConfig struct {
	TrackingURI    string
	RequestTimeout time.Duration
}

// LoadStorageConfig loads object storage configuration from environment variables
func LoadStorageConfig() *StorageConfig {
	return &StorageConfig{
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		EndpointURL:     getEnv("MLFLOW_S3_ENDPOINT_URL", "http://s3:9000"),
		Region:          getEnv("AWS_REGION", "us-east-1"),
		URLPrefix:       strings.TrimRight(getEnv("DATASET_STORAGE_URL_PREFIX", "s3://mlops"), "/"),
		UsePathStyle:    getEnvAsBool("S3_USE_PATH_STYLE", true),
		RequestTimeout:  time.Duration(getEnvAsInt("S3_REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
	}
}

// LoadRegistryConfig loads model registry configuration from environment variables
func LoadRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		TrackingURI:    strings.TrimRight(getEnv("MLFLOW_TRACKING_URI", "http://mlflow_server:5050"), "/"),
		RequestTimeout: time.Duration(getEnvAsInt("MLFLOW_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// Validate checks the storage prefix is an s3:// URL with a bucket
func (c *StorageConfig) Validate() error {
	if c.URLPrefix == "" {
		return nil
	}
	if _, _, err := c.PrefixBucket(); err != nil {
		return err
	}
	return nil
}

// PrefixBucket splits URLPrefix into bucket and key prefix
func (c *StorageConfig) PrefixBucket() (string, string, error) {
	rest, ok := strings.CutPrefix(c.URLPrefix, "s3://")
	if !ok {
		return "", "", fmt.Errorf("DATASET_STORAGE_URL_PREFIX must start with s3://, got %q", c.URLPrefix)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("DATASET_STORAGE_URL_PREFIX has no bucket: %q", c.URLPrefix)
	}
	return bucket, strings.Trim(key, "/"), nil
}

// RemotePath joins a relative dataset path onto the storage prefix
func (c *StorageConfig) RemotePath(path string) string {
	return c.URLPrefix + "/" + strings.TrimLeft(path, "/")
}
