package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideShip(t *testing.T) {
	// Clear conversion lift, guardrail exactly at the allowed 2pp
	// degradation (boundary is inclusive).
	in := Input{
		A: Counts{Exposed: 10_000, Converted: 4000, Guardrail: 8000},
		B: Counts{Exposed: 10_000, Converted: 4300, Guardrail: 7800},
	}
	res, err := Decide(in, testParams())
	require.NoError(t, err)

	assert.True(t, res.Significant)
	assert.Less(t, res.PValue, 0.05)
	assert.Greater(t, res.ProbBBeatsA, 0.95)
	assert.True(t, res.GuardrailNonInferior)
	assert.InDelta(t, 0.02, res.GuardrailDiff, 1e-9)
	assert.Equal(t, Ship, res.Recommendation)
}

func TestDecideGuardrailFailed(t *testing.T) {
	// Same winning primary metric, but the guardrail degrades by 3pp.
	in := Input{
		A: Counts{Exposed: 10_000, Converted: 4000, Guardrail: 8000},
		B: Counts{Exposed: 10_000, Converted: 4300, Guardrail: 7700},
	}
	res, err := Decide(in, testParams())
	require.NoError(t, err)

	assert.True(t, res.Significant)
	assert.False(t, res.GuardrailNonInferior)
	assert.Equal(t, HoldGuardrailFailed, res.Recommendation)
}

func TestDecideInconclusive(t *testing.T) {
	// Half a percentage point of lift: neither leg clears its bar.
	in := Input{
		A: Counts{Exposed: 10_000, Converted: 4000, Guardrail: 8000},
		B: Counts{Exposed: 10_000, Converted: 4050, Guardrail: 8000},
	}
	res, err := Decide(in, testParams())
	require.NoError(t, err)

	assert.False(t, res.Significant)
	assert.Greater(t, res.PValue, 0.05)
	assert.Less(t, res.ProbBBeatsA, 0.95)
	assert.Equal(t, HoldInconclusive, res.Recommendation)
}

func TestDecidePracticallyEquivalent(t *testing.T) {
	// Identical rates at very large scale: the posterior lift mass
	// concentrates inside the ROPE.
	in := Input{
		A: Counts{Exposed: 200_000, Converted: 80_000, Guardrail: 160_000},
		B: Counts{Exposed: 200_000, Converted: 80_000, Guardrail: 160_000},
	}
	res, err := Decide(in, testParams())
	require.NoError(t, err)

	assert.False(t, res.Significant)
	assert.GreaterOrEqual(t, res.ProbWithinROPE, 0.95)
	assert.Equal(t, PracticallyEquivalent, res.Recommendation)
}

func TestDecideInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"zero exposed A", Input{A: Counts{}, B: Counts{Exposed: 100, Converted: 10}}},
		{"zero exposed B", Input{A: Counts{Exposed: 100, Converted: 10}, B: Counts{}}},
		{"both empty", Input{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decide(tt.in, testParams())
			require.ErrorIs(t, err, ErrInsufficientData)
			assert.Nil(t, res)
		})
	}
}

func TestDecideReproducible(t *testing.T) {
	in := Input{
		A: Counts{Exposed: 1000, Converted: 400, Guardrail: 800},
		B: Counts{Exposed: 1000, Converted: 430, Guardrail: 790},
	}
	p := testParams()

	first, err := Decide(in, p)
	require.NoError(t, err)
	second, err := Decide(in, p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGuardrailBoundary(t *testing.T) {
	p := testParams()

	tests := []struct {
		name       string
		guardrailB int64
		want       bool
	}{
		{"2pp worse passes", 7800, true},
		{"3pp worse fails", 7700, false},
		{"better than control passes", 8200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{
				A: Counts{Exposed: 10_000, Converted: 4000, Guardrail: 8000},
				B: Counts{Exposed: 10_000, Converted: 4300, Guardrail: tt.guardrailB},
			}
			res, err := Decide(in, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.GuardrailNonInferior)
		})
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 0.05, p.Alpha)
	assert.Equal(t, 0.95, p.Confidence)
	assert.Equal(t, 0.02, p.GuardrailDelta)
	assert.Equal(t, uint64(42), p.Seed)
	assert.Equal(t, 200_000, p.Samples)
}
