package validation

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MikeSquared-Agency/Caliper/internal/store"
)

// welchResult is the outcome of comparing the learned arm against the
// default arm.
type welchResult struct {
	improvement float64 // learned accuracy minus default accuracy
	confidence  float64 // one-sided confidence that the improvement is real
}

// welchTest runs Welch's two-sample t-test on the two accuracy
// counters. Each counter summarizes Bernoulli samples, so the sample
// variance is p(1-p) and the test reduces to the counts.
func welchTest(learned, control store.SignalCounter) welchResult {
	p1 := learned.Accuracy()
	p2 := control.Accuracy()
	n1 := float64(learned.Total)
	n2 := float64(control.Total)

	improvement := p1 - p2

	v1 := p1 * (1 - p1) / n1
	v2 := p2 * (1 - p2) / n2
	se := math.Sqrt(v1 + v2)
	if se == 0 {
		// Degenerate arms (all correct or all wrong). The direction of
		// the difference is all the evidence there is.
		if improvement > 0 {
			return welchResult{improvement: improvement, confidence: 1}
		}
		return welchResult{improvement: improvement, confidence: 0}
	}

	t := improvement / se
	df := welchSatterthwaite(v1, v2, n1, n2)

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return welchResult{improvement: improvement, confidence: dist.CDF(t)}
}

func welchSatterthwaite(v1, v2, n1, n2 float64) float64 {
	num := (v1 + v2) * (v1 + v2)
	den := v1*v1/(n1-1) + v2*v2/(n2-1)
	if den == 0 {
		return n1 + n2 - 2
	}
	return num / den
}
