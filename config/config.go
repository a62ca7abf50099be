package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backends
const (
	BackendSQL    = "sql"
	BackendDynamo = "dynamo"
)

type Config struct {
	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	// Backend selects the DataService implementation: "sql" or "dynamo".
	Backend string

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	AWS struct {
		Region      string
		TablePrefix string
	}

	S3 struct {
		Bucket string
	}

	Realtime struct {
		// URL of the websocket change-feed gateway, e.g. wss://host/feed.
		URL string
	}

	Request struct {
		// Timeout bounds every backend call; Retries is the number of
		// additional attempts for transient failures.
		Timeout time.Duration
		Retries int
	}

	Presence struct {
		Heartbeat time.Duration
	}
}

func New() *Config {
	cfg := &Config{}

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "lovelink")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Backend selection
	cfg.Backend = getEnvDefault("BACKEND", BackendSQL)

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "lovelink")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// AWS / S3
	cfg.AWS.Region = getEnvDefault("AWS_REGION", "us-east-1")
	cfg.AWS.TablePrefix = os.Getenv("DYNAMO_TABLE_PREFIX")
	cfg.S3.Bucket = os.Getenv("S3_BUCKET_NAME")

	// Realtime
	cfg.Realtime.URL = os.Getenv("REALTIME_URL")

	// Request hardening
	cfg.Request.Timeout = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
	cfg.Request.Retries = getEnvInt("REQUEST_RETRIES", 2)

	// Presence
	cfg.Presence.Heartbeat = getEnvDuration("PRESENCE_HEARTBEAT", 15*time.Second)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
