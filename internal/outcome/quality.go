package outcome

import "math"

// QualityScorer turns a resolved prediction into [0,1] quality scores,
// one per participating signal plus an overall score for the blended
// prediction. It is a seam: tests and future scoring policies swap it
// without touching the collector.
type QualityScorer interface {
	Score(pred *Prediction, observed float64) (bySignal map[string]float64, overall float64)
}

// AbsoluteErrorScorer scores quality as 1 - |predicted - observed|,
// clamped to [0,1]. Signals that recorded their own predicted value are
// scored against it; the rest inherit the blended score.
type AbsoluteErrorScorer struct{}

func (AbsoluteErrorScorer) Score(pred *Prediction, observed float64) (map[string]float64, float64) {
	overall := closeness(pred.PredictedValue, observed)

	bySignal := make(map[string]float64, len(pred.SignalsUsed))
	for _, signal := range pred.SignalsUsed {
		if sp, ok := pred.SignalPredictions[signal]; ok {
			bySignal[signal] = closeness(sp, observed)
		} else {
			bySignal[signal] = overall
		}
	}
	return bySignal, overall
}

func closeness(predicted, observed float64) float64 {
	q := 1 - math.Abs(predicted-observed)
	if math.IsNaN(q) || q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}
