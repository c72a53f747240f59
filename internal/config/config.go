package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string // RMK_DATABASE_URL (required)
	HTTPAddr    string // RMK_HTTP_ADDR (default ":15432")
	GRPCAddr    string // RMK_GRPC_ADDR (default ":9090"; empty = no gRPC listener)
	AppName     string // RMK_APP_NAME (default "JauPesca Gateway")
	Env         string // RMK_ENV (default "development")
	NATSURL     string // RMK_NATS_URL (optional, empty = no events)

	// Object storage, shared by uploads and the backup sync.
	S3Endpoint        string // RMK_S3_ENDPOINT (custom endpoint for MinIO)
	S3Region          string // RMK_S3_REGION (default "us-east-1")
	S3Bucket          string // RMK_S3_BUCKET (default "remarketing")
	S3PublicBaseURL   string // RMK_S3_PUBLIC_BASE_URL (default: S3Endpoint, else the regional AWS endpoint)
	S3AccessKeyID     string // RMK_S3_ACCESS_KEY_ID (optional, default credential chain when empty)
	S3SecretAccessKey string // RMK_S3_SECRET_ACCESS_KEY
	UploadMaxBytes    int64  // RMK_UPLOAD_MAX_BYTES (default 50 MiB)

	// Sync settings
	SyncInterval time.Duration // RMK_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Key    string        // RMK_SYNC_S3_KEY (default "remarketing/backup.jsonl")
}

// Load reads .env from the working directory, if present, and then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := loadDotenv(".env"); err != nil {
		return nil, err
	}
	return FromEnv()
}

func loadDotenv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("RMK_DATABASE_URL"),
		HTTPAddr:          envOrDefault("RMK_HTTP_ADDR", ":15432"),
		GRPCAddr:          envOrDefault("RMK_GRPC_ADDR", ":9090"),
		AppName:           envOrDefault("RMK_APP_NAME", "JauPesca Gateway"),
		Env:               envOrDefault("RMK_ENV", "development"),
		NATSURL:           os.Getenv("RMK_NATS_URL"),
		S3Endpoint:        os.Getenv("RMK_S3_ENDPOINT"),
		S3Region:          envOrDefault("RMK_S3_REGION", "us-east-1"),
		S3Bucket:          envOrDefault("RMK_S3_BUCKET", "remarketing"),
		S3AccessKeyID:     os.Getenv("RMK_S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("RMK_S3_SECRET_ACCESS_KEY"),
		SyncS3Key:         envOrDefault("RMK_SYNC_S3_KEY", "remarketing/backup.jsonl"),
	}
	c.S3PublicBaseURL = envOrDefault("RMK_S3_PUBLIC_BASE_URL", c.S3Endpoint)
	if c.S3PublicBaseURL == "" {
		c.S3PublicBaseURL = awsPublicBase(c.S3Region)
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("RMK_DATABASE_URL is required")
	}

	maxBytes, err := strconv.ParseInt(envOrDefault("RMK_UPLOAD_MAX_BYTES", "52428800"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, fmt.Errorf("RMK_UPLOAD_MAX_BYTES: must be a positive integer")
	}
	c.UploadMaxBytes = maxBytes

	d, err := time.ParseDuration(envOrDefault("RMK_SYNC_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("RMK_SYNC_INTERVAL: %w", err)
	}
	c.SyncInterval = d

	return c, nil
}

// StorageEnabled reports whether object storage is configured. Uploads answer
// 503 and the backup sync is skipped when it is not.
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != "" && (c.S3Endpoint != "" || c.S3AccessKeyID != "")
}

// awsPublicBase is the regional S3 endpoint. Objects are addressed
// path-style beneath it as <base>/<bucket>/<key>.
func awsPublicBase(region string) string {
	return "https://s3." + region + ".amazonaws.com"
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
