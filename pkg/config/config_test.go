package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "curator.db", cfg.SQLitePath)
	assert.Equal(t, 30.0, cfg.CooldownSeconds)
	assert.Equal(t, 2.0, cfg.ChecksPerSecond)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("COOLDOWN_SECONDS", "5.5")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("APPROVAL_JWT_SECRET", "sekrit")

	cfg := Load()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5.5, cfg.CooldownSeconds)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "sekrit", cfg.ApprovalJWTSecret)
}

func TestLoad_BadFloatFallsBack(t *testing.T) {
	t.Setenv("COOLDOWN_SECONDS", "not-a-number")
	assert.Equal(t, 30.0, Load().CooldownSeconds)

	t.Setenv("COOLDOWN_SECONDS", "-4")
	assert.Equal(t, 30.0, Load().CooldownSeconds)
}
