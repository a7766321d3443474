package stats

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Posterior is the Bayesian leg of the decision: Monte Carlo estimates
// over the conjugate Beta posteriors of the two conversion rates.
type Posterior struct {
	ProbBBeatsA    float64
	LiftHDI        Interval
	ProbWithinROPE float64
}

// SamplePosterior draws paired samples from the Beta posteriors of A and
// B and derives Pr(B>A), the HDI of the lift (B-A) at the configured
// confidence, and the posterior mass within the ROPE. A single explicitly
// seeded source drives all draws: A's samples first, then B's, so a fixed
// seed yields bit-identical estimates run over run.
func SamplePosterior(in Input, p Params) Posterior {
	src := rand.NewSource(p.Seed)

	betaA := distuv.Beta{
		Alpha: p.PriorAlpha + float64(in.A.Converted),
		Beta:  p.PriorBeta + float64(in.A.Exposed-in.A.Converted),
		Src:   src,
	}
	betaB := distuv.Beta{
		Alpha: p.PriorAlpha + float64(in.B.Converted),
		Beta:  p.PriorBeta + float64(in.B.Exposed-in.B.Converted),
		Src:   src,
	}

	n := p.Samples
	sA := make([]float64, n)
	for i := range sA {
		sA[i] = betaA.Rand()
	}

	lift := make([]float64, n)
	var better, inROPE int
	for i := range lift {
		lift[i] = betaB.Rand() - sA[i]
		if lift[i] > 0 {
			better++
		}
		if math.Abs(lift[i]) <= p.ROPE {
			inROPE++
		}
	}

	return Posterior{
		ProbBBeatsA:    float64(better) / float64(n),
		LiftHDI:        hdi(lift, p.Confidence),
		ProbWithinROPE: float64(inROPE) / float64(n),
	}
}

// hdi returns the highest-density interval: the shortest window covering
// the requested mass of the sorted samples. Mutates its argument's order.
func hdi(samples []float64, mass float64) Interval {
	sort.Float64s(samples)
	n := len(samples)
	k := int(math.Floor(mass * float64(n)))
	if k >= n {
		return Interval{Low: samples[0], High: samples[n-1]}
	}

	best := 0
	bestWidth := math.Inf(1)
	for i := 0; i+k < n; i++ {
		if w := samples[i+k] - samples[i]; w < bestWidth {
			bestWidth = w
			best = i
		}
	}
	return Interval{Low: samples[best], High: samples[best+k]}
}
