// Package learning owns the canonical per-(tenant, context, service)
// weight vectors: fixed defaults, an online-learned estimate, and the
// blend between them that consumers actually score with.
package learning

import "math"

// Signal names whose trust weight is learned. Consumers normalize the
// vector themselves; weights are relative, not a distribution.
const (
	SignalML         = "ml"
	SignalRules      = "rules"
	SignalLLM        = "llm"
	SignalHistorical = "historical"
)

func SignalNames() []string {
	return []string{SignalML, SignalRules, SignalLLM, SignalHistorical}
}

// DefaultWeights is the fixed baseline every new context starts from.
// Learning never mutates these; rollback returns to them.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		SignalML:         0.9,
		SignalRules:      1.0,
		SignalLLM:        0.8,
		SignalHistorical: 0.9,
	}
}

// Blend derives the active vector: learned*ratio + default*(1-ratio),
// keyed by the default map so a learned map missing a signal still
// yields a complete vector.
func Blend(learned, defaults map[string]float64, ratio float64) map[string]float64 {
	active := make(map[string]float64, len(defaults))
	for name, def := range defaults {
		l, ok := learned[name]
		if !ok {
			l = def
		}
		active[name] = l*ratio + def*(1-ratio)
	}
	return active
}

func clampWeight(v, max float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, max)
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
