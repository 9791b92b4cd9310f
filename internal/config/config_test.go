package config

import (
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

var allEnvVars = []string{
	"ODM_STORE_URL", "ODM_SCHEMAS", "ODM_GRPC_ADDR", "ODM_HTTP_ADDR", "ODM_NATS_URL",
	"ODM_AUTH_TOKEN", "ODM_LOG_LEVEL", "ODM_DEREF_DEPTH",
	"ODM_SYNC_INTERVAL", "ODM_SYNC_S3_BUCKET", "ODM_SYNC_S3_ENDPOINT",
	"ODM_SYNC_S3_REGION", "ODM_SYNC_S3_PREFIX", "ODM_SYNC_DIR",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantStoreURL string
		wantGRPCAddr string
		wantHTTPAddr string
		wantNATSURL  string
		wantSchemas  int
	}{
		{
			name:         "Defaults",
			env:          map[string]string{},
			wantStoreURL: "memory://",
			wantGRPCAddr: ":9090",
			wantHTTPAddr: ":8080",
		},
		{
			name: "Custom",
			env: map[string]string{
				"ODM_STORE_URL": "postgres://db:5432/odm",
				"ODM_SCHEMAS":   "schemas/*.toml, extra/**/*.yaml,",
				"ODM_GRPC_ADDR": ":5050",
				"ODM_HTTP_ADDR": ":3000",
				"ODM_NATS_URL":  "nats://localhost:4222",
			},
			wantStoreURL: "postgres://db:5432/odm",
			wantGRPCAddr: ":5050",
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
			wantSchemas:  2,
		},
		{
			name:    "BadLogLevel",
			env:     map[string]string{"ODM_LOG_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name:    "BadDepth",
			env:     map[string]string{"ODM_DEREF_DEPTH": "-1"},
			wantErr: true,
		},
		{
			name:    "IntervalWithoutDestination",
			env:     map[string]string{"ODM_SYNC_INTERVAL": "5m"},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.StoreURL != tc.wantStoreURL {
				t.Errorf("StoreURL = %q, want %q", cfg.StoreURL, tc.wantStoreURL)
			}
			if cfg.GRPCAddr != tc.wantGRPCAddr {
				t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, tc.wantGRPCAddr)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
			if len(cfg.Schemas) != tc.wantSchemas {
				t.Errorf("Schemas = %q, want %d entries", cfg.Schemas, tc.wantSchemas)
			}
		})
	}
}

func TestLoadLoggingAndDepth(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("ODM_LOG_LEVEL", "debug")
	t.Setenv("ODM_DEREF_DEPTH", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != zapcore.DebugLevel {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.Depth != 3 {
		t.Errorf("Depth = %d, want 3", cfg.Depth)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("logger should be enabled at debug")
	}
}

func TestLoadSyncDefaults(t *testing.T) {
	clearAllEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0 (disabled)", cfg.SyncInterval)
	}
	if cfg.SyncS3Region != "us-east-1" {
		t.Errorf("SyncS3Region = %q, want %q", cfg.SyncS3Region, "us-east-1")
	}
	if cfg.SyncS3Prefix != "odm/" {
		t.Errorf("SyncS3Prefix = %q, want %q", cfg.SyncS3Prefix, "odm/")
	}
}

func TestLoadSyncCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("ODM_SYNC_INTERVAL", "10m")
	t.Setenv("ODM_SYNC_S3_BUCKET", "my-bucket")
	t.Setenv("ODM_SYNC_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("ODM_SYNC_S3_REGION", "eu-west-1")
	t.Setenv("ODM_SYNC_S3_PREFIX", "backups/")
	t.Setenv("ODM_SYNC_DIR", "/tmp/exports/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("SyncInterval = %v, want 10m", cfg.SyncInterval)
	}
	if cfg.SyncS3Bucket != "my-bucket" {
		t.Errorf("SyncS3Bucket = %q", cfg.SyncS3Bucket)
	}
	if cfg.SyncS3Endpoint != "http://minio:9000" {
		t.Errorf("SyncS3Endpoint = %q", cfg.SyncS3Endpoint)
	}
	if cfg.SyncS3Region != "eu-west-1" {
		t.Errorf("SyncS3Region = %q", cfg.SyncS3Region)
	}
	if cfg.SyncS3Prefix != "backups/" {
		t.Errorf("SyncS3Prefix = %q", cfg.SyncS3Prefix)
	}
	if cfg.SyncDir != "/tmp/exports" {
		t.Errorf("SyncDir = %q", cfg.SyncDir)
	}
}

func TestLoadSyncInvalidInterval(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("ODM_SYNC_INTERVAL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid ODM_SYNC_INTERVAL")
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			if got := envOrDefault(tc.key, tc.fallback); got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
