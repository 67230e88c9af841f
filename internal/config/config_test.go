package config

import (
	"log/slog"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvBind, EnvMetricsBind, EnvHostnameFile, EnvLoopbackAlias,
		EnvIdentityRetries, EnvIdentityBackoff, EnvShutdownGrace,
		EnvMaxInflight, EnvChangeWorkers, EnvChangeQueue,
		EnvStore, EnvMySQLDSN, EnvRedisAddr, EnvMongoURI, EnvMongoDB,
		EnvLogLevel,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if c.Bind != "127.0.0.1:8080" {
		t.Errorf("unexpected bind: %q", c.Bind)
	}
	if c.Store != StoreMemory {
		t.Errorf("expected memory store default, got %q", c.Store)
	}
	if c.IdentityRetries != 30 {
		t.Errorf("expected 30 retries, got %d", c.IdentityRetries)
	}
	if c.IdentityBackoff != 2*time.Second {
		t.Errorf("expected 2s backoff, got %s", c.IdentityBackoff)
	}
	if c.MaxInflight != 64 {
		t.Errorf("expected 64 in-flight, got %d", c.MaxInflight)
	}
	if c.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %s", c.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBind, "127.0.0.1:9999")
	t.Setenv(EnvStore, StoreRedis)
	t.Setenv(EnvRedisAddr, "redis.internal:6379")
	t.Setenv(EnvIdentityRetries, "5")
	t.Setenv(EnvIdentityBackoff, "500ms")
	t.Setenv(EnvLogLevel, "debug")

	c, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if c.Bind != "127.0.0.1:9999" {
		t.Errorf("unexpected bind: %q", c.Bind)
	}
	if c.Store != StoreRedis || c.RedisAddr != "redis.internal:6379" {
		t.Errorf("unexpected store config: %q %q", c.Store, c.RedisAddr)
	}
	if c.IdentityRetries != 5 || c.IdentityBackoff != 500*time.Millisecond {
		t.Errorf("unexpected identity wait config: %d %s", c.IdentityRetries, c.IdentityBackoff)
	}
	if c.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", c.LogLevel)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStore, "cassandra")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown store backend")
	}
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStore, StoreMySQL)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when mysql is selected without a DSN")
	}

	t.Setenv(EnvMySQLDSN, "root:root@tcp(localhost:3306)/onion_gateway?parseTime=true")
	if _, err := Load(); err != nil {
		t.Fatalf("load failed with DSN set: %v", err)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		EnvIdentityRetries: "many",
		EnvIdentityBackoff: "soon",
		EnvMaxInflight:     "0",
		EnvChangeWorkers:   "-1",
		EnvChangeQueue:     "-10",
		EnvLogLevel:        "loud",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("expected an error for %s=%q", key, value)
			}
		})
	}
}
