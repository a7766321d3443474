package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_OPERATOR_USER", "APP_OPERATOR_PASSWORD", "APP_LISTEN_ADDR",
		"APP_EXPERIMENTS_FILE", "APP_AGGREGATION_MINUTES", "APP_ROPE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "operator", cfg.OperatorUser)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "experiments.yaml", cfg.ExperimentsFile)
	assert.Equal(t, 10, cfg.AggregationMinutes)
	assert.Zero(t, cfg.ROPE)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_LISTEN_ADDR", ":9090")
	t.Setenv("APP_AGGREGATION_MINUTES", "5")
	t.Setenv("APP_ROPE", "0.01")
	t.Setenv("APP_DECISION_SEED", "1234")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.AggregationMinutes)
	assert.Equal(t, 0.01, cfg.ROPE)
	assert.Equal(t, int64(1234), cfg.Seed)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("APP_AGGREGATION_MINUTES", "soon")
	t.Setenv("APP_ROPE", "narrow")

	cfg := Load()
	assert.Equal(t, 10, cfg.AggregationMinutes)
	assert.Zero(t, cfg.ROPE)
}
