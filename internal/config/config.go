package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	// EnvBind is the local listener address the daemon forwards to.
	EnvBind = "ONION_GW_BIND"
	// EnvMetricsBind is the metrics listener address.
	EnvMetricsBind = "ONION_GW_METRICS_BIND"
	// EnvHostnameFile is the path the daemon publishes its identity to.
	EnvHostnameFile = "ONION_GW_HOSTNAME_FILE"
	// EnvLoopbackAlias is the extra allowlist entry for local access.
	EnvLoopbackAlias = "ONION_GW_LOOPBACK_ALIAS"
	// EnvIdentityRetries bounds the identity-file wait.
	EnvIdentityRetries = "ONION_GW_IDENTITY_RETRIES"
	// EnvIdentityBackoff is the delay between identity-file attempts.
	EnvIdentityBackoff = "ONION_GW_IDENTITY_BACKOFF"
	// EnvShutdownGrace bounds request draining on shutdown.
	EnvShutdownGrace = "ONION_GW_SHUTDOWN_GRACE"
	// EnvMaxInflight caps concurrent in-flight requests.
	EnvMaxInflight = "ONION_GW_MAX_INFLIGHT"
	// EnvChangeWorkers sets the audit journal worker count.
	EnvChangeWorkers = "ONION_GW_CHANGE_WORKERS"
	// EnvChangeQueue sets the audit journal queue capacity.
	EnvChangeQueue = "ONION_GW_CHANGE_QUEUE"
	// EnvStore selects the storage backend.
	EnvStore = "ONION_GW_STORE"
	// EnvMySQLDSN configures the mysql backend.
	EnvMySQLDSN = "ONION_GW_MYSQL_DSN"
	// EnvRedisAddr configures the redis backend.
	EnvRedisAddr = "ONION_GW_REDIS_ADDR"
	// EnvMongoURI configures the mongo backend.
	EnvMongoURI = "ONION_GW_MONGO_URI"
	// EnvMongoDB is the mongo database name.
	EnvMongoDB = "ONION_GW_MONGO_DB"
	// EnvLogLevel is debug, info, warn or error.
	EnvLogLevel = "ONION_GW_LOG_LEVEL"
)

// Store backend names accepted by EnvStore.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

type Config struct {
	Bind            string
	MetricsBind     string
	HostnameFile    string
	LoopbackAlias   string
	IdentityRetries int
	IdentityBackoff time.Duration
	ShutdownGrace   time.Duration
	MaxInflight     int64
	ChangeWorkers   int
	ChangeQueue     int
	Store           string
	MySQLDSN        string
	RedisAddr       string
	MongoURI        string
	MongoDB         string
	LogLevel        slog.Level
}

// Load reads the configuration from environment values, applying defaults
// where unset.
func Load() (*Config, error) {
	c := &Config{
		Bind:          getEnv(EnvBind, "127.0.0.1:8080"),
		MetricsBind:   getEnv(EnvMetricsBind, "127.0.0.1:9090"),
		HostnameFile:  getEnv(EnvHostnameFile, "/var/lib/tor/onion-gateway/hostname"),
		LoopbackAlias: getEnv(EnvLoopbackAlias, "localhost"),
		Store:         getEnv(EnvStore, StoreMemory),
		MySQLDSN:      os.Getenv(EnvMySQLDSN),
		RedisAddr:     getEnv(EnvRedisAddr, "localhost:6379"),
		MongoURI:      getEnv(EnvMongoURI, "mongodb://localhost:27017"),
		MongoDB:       getEnv(EnvMongoDB, "onion_gateway"),
	}

	var err error
	if c.IdentityRetries, err = getEnvInt(EnvIdentityRetries, 30); err != nil {
		return nil, err
	}
	if c.IdentityBackoff, err = getEnvDuration(EnvIdentityBackoff, 2*time.Second); err != nil {
		return nil, err
	}
	if c.ShutdownGrace, err = getEnvDuration(EnvShutdownGrace, 5*time.Second); err != nil {
		return nil, err
	}

	maxInflight, err := getEnvInt(EnvMaxInflight, 64)
	if err != nil {
		return nil, err
	}
	c.MaxInflight = int64(maxInflight)

	if c.ChangeWorkers, err = getEnvInt(EnvChangeWorkers, 4); err != nil {
		return nil, err
	}
	if c.ChangeQueue, err = getEnvInt(EnvChangeQueue, 1024); err != nil {
		return nil, err
	}
	if c.LogLevel, err = parseLogLevel(getEnv(EnvLogLevel, "info")); err != nil {
		return nil, err
	}

	switch c.Store {
	case StoreMemory, StoreRedis, StoreMongo:
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return nil, fmt.Errorf("%s is required when %s=%s", EnvMySQLDSN, EnvStore, StoreMySQL)
		}
	default:
		return nil, fmt.Errorf("%s must be one of memory, mysql, redis, mongo: got %q", EnvStore, c.Store)
	}

	if c.IdentityRetries < 0 {
		return nil, fmt.Errorf("%s must not be negative", EnvIdentityRetries)
	}
	if c.MaxInflight < 1 {
		return nil, fmt.Errorf("%s must be positive", EnvMaxInflight)
	}
	if c.ChangeWorkers < 1 {
		return nil, fmt.Errorf("%s must be positive", EnvChangeWorkers)
	}
	if c.ChangeQueue < 0 {
		return nil, fmt.Errorf("%s must not be negative", EnvChangeQueue)
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s, need int: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s, need duration: %w", key, err)
	}
	return d, nil
}

func parseLogLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", EnvLogLevel, err)
	}
	return level, nil
}
