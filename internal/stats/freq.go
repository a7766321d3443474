package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TwoProportionTest runs a pooled two-proportion z-test of B's conversion
// rate against A's and returns the z statistic and the two-sided p-value.
// A zero pooled standard error (all conversions or none, both sides)
// degenerates to z=0, p=1.
func TwoProportionTest(convA, nA, convB, nB int64) (z, p float64) {
	pA := float64(convA) / float64(nA)
	pB := float64(convB) / float64(nB)
	pooled := float64(convA+convB) / float64(nA+nB)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(nA) + 1/float64(nB)))
	if se == 0 {
		return 0, 1
	}

	z = (pB - pA) / se
	p = 2 * distuv.UnitNormal.CDF(-math.Abs(z))
	return z, p
}

// WilsonInterval returns the Wilson score interval for conv successes out
// of n trials at the given confidence level. Preferred over the normal
// approximation because it stays inside [0,1] and behaves near rates of
// 0 and 1.
func WilsonInterval(conv, n int64, confidence float64) Interval {
	if n == 0 {
		return Interval{}
	}

	zc := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	nf := float64(n)
	phat := float64(conv) / nf

	denom := 1 + zc*zc/nf
	center := (phat + zc*zc/(2*nf)) / denom
	half := zc / denom * math.Sqrt(phat*(1-phat)/nf+zc*zc/(4*nf*nf))

	return Interval{
		Low:  math.Max(0, center-half),
		High: math.Min(1, center+half),
	}
}
