package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	StoreURL  string   // ODM_STORE_URL (default "memory://")
	Schemas   []string // ODM_SCHEMAS (comma-separated glob patterns, e.g. "schemas/**/*.toml")
	GRPCAddr  string   // ODM_GRPC_ADDR (default ":9090")
	HTTPAddr  string   // ODM_HTTP_ADDR (default ":8080")
	NATSURL   string   // ODM_NATS_URL (optional, empty = no events)
	AuthToken string   // ODM_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel  zapcore.Level
	Depth     int // ODM_DEREF_DEPTH (default 1)

	// Export settings
	SyncInterval   time.Duration // ODM_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // ODM_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // ODM_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // ODM_SYNC_S3_REGION (default "us-east-1")
	SyncS3Prefix   string        // ODM_SYNC_S3_PREFIX (default "odm/")
	SyncDir        string        // ODM_SYNC_DIR (enables local exports when set)
}

func Load() (*Config, error) {
	c := &Config{
		StoreURL:       envOrDefault("ODM_STORE_URL", "memory://"),
		Schemas:        splitList(os.Getenv("ODM_SCHEMAS")),
		GRPCAddr:       envOrDefault("ODM_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("ODM_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("ODM_NATS_URL"),
		AuthToken:      os.Getenv("ODM_AUTH_TOKEN"),
		Depth:          1,
		SyncS3Bucket:   os.Getenv("ODM_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("ODM_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("ODM_SYNC_S3_REGION", "us-east-1"),
		SyncS3Prefix:   envOrDefault("ODM_SYNC_S3_PREFIX", "odm/"),
		SyncDir:        os.Getenv("ODM_SYNC_DIR"),
	}

	level, err := zapcore.ParseLevel(envOrDefault("ODM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ODM_LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	if s := os.Getenv("ODM_DEREF_DEPTH"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("ODM_DEREF_DEPTH: invalid depth %q", s)
		}
		c.Depth = n
	}

	if s := os.Getenv("ODM_SYNC_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("ODM_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}
	if c.SyncInterval > 0 && c.SyncS3Bucket == "" && c.SyncDir == "" {
		return nil, fmt.Errorf("ODM_SYNC_INTERVAL is set but no destination is configured (ODM_SYNC_S3_BUCKET or ODM_SYNC_DIR)")
	}
	if c.SyncDir != "" {
		c.SyncDir = filepath.Clean(c.SyncDir)
	}

	return c, nil
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	return zc.Build()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
