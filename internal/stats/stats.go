// Package stats is the decision engine: a stateless batch computation
// turning per-variant aggregate counts into a ship/hold recommendation.
// It combines a frequentist two-proportion test, a Bayesian
// posterior-probability estimate, and a non-inferiority guardrail check.
package stats

import (
	"errors"
)

// ErrInsufficientData means the engine was invoked with a missing variant
// or zero exposed users on either side. No recommendation is produced.
var ErrInsufficientData = errors.New("insufficient data for decision")

// Counts are the aggregate inputs for one variant, produced by the
// aggregation layer. Read-only here.
type Counts struct {
	Exposed   int64 `json:"exposed"`
	Converted int64 `json:"converted"`
	Guardrail int64 `json:"guardrail"`
}

// Input is a two-variant comparison: A is control, B is treatment.
type Input struct {
	A Counts `json:"a"`
	B Counts `json:"b"`
}

// Params are the decision knobs. DefaultParams matches the documented
// defaults; callers override individual fields.
type Params struct {
	// Alpha is the frequentist significance threshold for the two-sided
	// p-value.
	Alpha float64 `json:"alpha"`

	// Confidence is the coverage of the Wilson intervals (and the HDI).
	Confidence float64 `json:"confidence"`

	// PriorAlpha and PriorBeta shape the Beta prior on each conversion
	// rate. (1,1) is uniform.
	PriorAlpha float64 `json:"prior_alpha"`
	PriorBeta  float64 `json:"prior_beta"`

	// Samples is the number of posterior draws per variant.
	Samples int `json:"samples"`

	// Seed drives the posterior sampler. Identical counts and seed must
	// reproduce bit-identical probabilities; audits depend on it.
	Seed uint64 `json:"seed"`

	// ROPE is the absolute-lift band treated as practical equivalence.
	ROPE float64 `json:"rope"`

	// DecisionProb is the posterior-probability bar for acting
	// (both for Pr(B>A) and for Pr(|lift| within ROPE)).
	DecisionProb float64 `json:"decision_prob"`

	// GuardrailDelta is the allowed degradation of the guardrail rate:
	// B may be worse than A by at most this much, boundary inclusive.
	GuardrailDelta float64 `json:"guardrail_delta"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Alpha:          0.05,
		Confidence:     0.95,
		PriorAlpha:     1,
		PriorBeta:      1,
		Samples:        200_000,
		Seed:           42,
		ROPE:           0.005,
		DecisionProb:   0.95,
		GuardrailDelta: 0.02,
	}
}

// Recommendation is the combined verdict. Exactly one is produced for
// every valid input.
type Recommendation string

const (
	Ship                  Recommendation = "SHIP"
	HoldGuardrailFailed   Recommendation = "HOLD_GUARDRAIL_FAILED"
	PracticallyEquivalent Recommendation = "PRACTICALLY_EQUIVALENT"
	HoldInconclusive      Recommendation = "HOLD_INCONCLUSIVE"
)

// Interval is a closed [Low, High] interval.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// VariantSummary reports per-variant rate estimates.
type VariantSummary struct {
	Exposed       int64    `json:"exposed"`
	Converted     int64    `json:"converted"`
	Rate          float64  `json:"rate"`
	RateCI        Interval `json:"rate_ci"`
	GuardrailRate float64  `json:"guardrail_rate"`
}

// Result is the full decision output. Computed fresh per invocation, not
// persisted.
type Result struct {
	A VariantSummary `json:"a"`
	B VariantSummary `json:"b"`

	// Frequentist leg.
	ZStat       float64 `json:"z_stat"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`

	// Bayesian leg.
	ProbBBeatsA    float64  `json:"prob_b_beats_a"`
	LiftHDI        Interval `json:"lift_hdi"`
	ProbWithinROPE float64  `json:"prob_within_rope"`

	// Guardrail leg. Diff is rateA - rateB, the degradation being bounded.
	GuardrailDiff        float64 `json:"guardrail_diff"`
	GuardrailNonInferior bool    `json:"guardrail_non_inferior"`

	Recommendation Recommendation `json:"recommendation"`
}

// Decide runs all three legs and combines them. The four outcomes are
// mutually exclusive:
//
//   - SHIP when the primary metric clears either the frequentist or the
//     Bayesian bar and the guardrail is non-inferior;
//   - HOLD_GUARDRAIL_FAILED when the primary metric clears a bar but the
//     guardrail does not;
//   - PRACTICALLY_EQUIVALENT when the posterior mass inside the ROPE
//     clears the decision bar;
//   - HOLD_INCONCLUSIVE otherwise.
func Decide(in Input, p Params) (*Result, error) {
	if in.A.Exposed == 0 || in.B.Exposed == 0 {
		return nil, ErrInsufficientData
	}

	res := &Result{
		A: summarize(in.A, p.Confidence),
		B: summarize(in.B, p.Confidence),
	}

	res.ZStat, res.PValue = TwoProportionTest(in.A.Converted, in.A.Exposed, in.B.Converted, in.B.Exposed)
	res.Significant = res.PValue < p.Alpha

	post := SamplePosterior(in, p)
	res.ProbBBeatsA = post.ProbBBeatsA
	res.LiftHDI = post.LiftHDI
	res.ProbWithinROPE = post.ProbWithinROPE

	res.GuardrailDiff = res.A.GuardrailRate - res.B.GuardrailRate
	// The boundary is inclusive; the epsilon keeps rate pairs that land
	// exactly on delta (0.80 vs 0.78) from failing on float rounding.
	res.GuardrailNonInferior = res.GuardrailDiff <= p.GuardrailDelta+1e-12

	primary := res.Significant || res.ProbBBeatsA >= p.DecisionProb
	switch {
	case primary && res.GuardrailNonInferior:
		res.Recommendation = Ship
	case primary:
		res.Recommendation = HoldGuardrailFailed
	case res.ProbWithinROPE >= p.DecisionProb:
		res.Recommendation = PracticallyEquivalent
	default:
		res.Recommendation = HoldInconclusive
	}

	return res, nil
}

func summarize(c Counts, confidence float64) VariantSummary {
	rate := float64(c.Converted) / float64(c.Exposed)
	return VariantSummary{
		Exposed:       c.Exposed,
		Converted:     c.Converted,
		Rate:          rate,
		RateCI:        WilsonInterval(c.Converted, c.Exposed, confidence),
		GuardrailRate: float64(c.Guardrail) / float64(c.Exposed),
	}
}
