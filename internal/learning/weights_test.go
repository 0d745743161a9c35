package learning

import (
	"math"
	"testing"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	want := map[string]float64{"ml": 0.9, "rules": 1.0, "llm": 0.8, "historical": 0.9}
	for name, v := range want {
		if w[name] != v {
			t.Errorf("default %s = %f, want %f", name, w[name], v)
		}
	}
	if len(w) != len(SignalNames()) {
		t.Errorf("expected %d signals, got %d", len(SignalNames()), len(w))
	}
}

func TestBlend(t *testing.T) {
	defaults := map[string]float64{"ml": 1.0, "rules": 0.5}
	learned := map[string]float64{"ml": 0.0, "rules": 1.0}

	t.Run("ratio zero is defaults", func(t *testing.T) {
		active := Blend(learned, defaults, 0)
		if active["ml"] != 1.0 || active["rules"] != 0.5 {
			t.Errorf("unexpected active %v", active)
		}
	})

	t.Run("ratio one is learned", func(t *testing.T) {
		active := Blend(learned, defaults, 1)
		if active["ml"] != 0.0 || active["rules"] != 1.0 {
			t.Errorf("unexpected active %v", active)
		}
	})

	t.Run("halfway", func(t *testing.T) {
		active := Blend(learned, defaults, 0.5)
		if math.Abs(active["ml"]-0.5) > 1e-9 || math.Abs(active["rules"]-0.75) > 1e-9 {
			t.Errorf("unexpected active %v", active)
		}
	})

	t.Run("missing learned signal falls back to default", func(t *testing.T) {
		active := Blend(map[string]float64{}, defaults, 0.8)
		if active["ml"] != 1.0 {
			t.Errorf("expected default for signal absent from learned, got %f", active["ml"])
		}
	})
}

func TestClampWeight(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{1.3, 1.3},
		{2.5, 2.0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := clampWeight(tt.in, 2.0); got != tt.want {
			t.Errorf("clampWeight(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
