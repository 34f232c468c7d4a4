// Package config loads runtime configuration from the environment and
// the curation profile from YAML.
package config

import (
	"os"
	"strconv"
)

// Config holds pipeline configuration.
type Config struct {
	LogLevel          string
	DatabaseURL       string
	SQLitePath        string
	RedisAddr         string
	RedisPassword     string
	ApprovalJWTSecret string
	S3Bucket          string
	S3Prefix          string
	OTLPEndpoint      string
	MetricsEnabled    bool
	CooldownSeconds   float64
	ChecksPerSecond   float64
	ProfilePath       string
}

// Load reads configuration from environment variables with development
// defaults. A missing APPROVAL_JWT_SECRET is allowed here; the token
// path rejects empty secrets at use time.
func Load() *Config {
	return &Config{
		LogLevel:          envOr("LOG_LEVEL", "info"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        envOr("SQLITE_PATH", "curator.db"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		ApprovalJWTSecret: os.Getenv("APPROVAL_JWT_SECRET"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Prefix:          envOr("S3_PREFIX", "releases"),
		OTLPEndpoint:      envOr("OTLP_ENDPOINT", "localhost:4317"),
		MetricsEnabled:    os.Getenv("METRICS_ENABLED") == "true",
		CooldownSeconds:   envFloat("COOLDOWN_SECONDS", 30),
		ChecksPerSecond:   envFloat("CHECKS_PER_SECOND", 2),
		ProfilePath:       envOr("CURATION_PROFILE", "profile_hr.yaml"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
