package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ablab/internal/config"
	"ablab/internal/stats"
)

func TestDecisionParamsDefaults(t *testing.T) {
	p := DecisionParams(&config.Config{})
	assert.Equal(t, stats.DefaultParams(), p)
}

func TestDecisionParamsOverrides(t *testing.T) {
	cfg := &config.Config{
		ROPE:           0.01,
		DecisionProb:   0.99,
		GuardrailDelta: 0.03,
		PriorAlpha:     2,
		PriorBeta:      5,
		Seed:           7,
	}

	p := DecisionParams(cfg)
	assert.Equal(t, 0.01, p.ROPE)
	assert.Equal(t, 0.99, p.DecisionProb)
	assert.Equal(t, 0.03, p.GuardrailDelta)
	assert.Equal(t, 2.0, p.PriorAlpha)
	assert.Equal(t, 5.0, p.PriorBeta)
	assert.Equal(t, uint64(7), p.Seed)

	// Untouched knobs keep engine defaults.
	assert.Equal(t, 0.05, p.Alpha)
	assert.Equal(t, 200_000, p.Samples)
}
