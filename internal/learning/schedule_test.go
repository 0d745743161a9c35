package learning

import (
	"math"
	"testing"
)

func TestBlendRatioStages(t *testing.T) {
	s := DefaultSchedule()

	tests := []struct {
		name      string
		examples  int
		validated bool
		want      float64
	}{
		{"zero", 0, false, 0},
		{"just below bootstrap", 99, false, 0},
		{"at bootstrap boundary", 100, false, 0},
		{"mid initial", 300, false, 0.25},
		{"at initial boundary", 500, false, 0.5},
		{"mid transition", 750, false, 0.7},
		{"at transition boundary", 1000, false, 0.9},
		{"mature unvalidated capped", 2000, false, 0.9},
		{"mature validated", 2000, true, 1.0},
		{"mid mature validated", 1500, true, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.BlendRatio(tt.examples, tt.validated)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BlendRatio(%d, %v) = %f, want %f", tt.examples, tt.validated, got, tt.want)
			}
		})
	}
}

func TestBlendRatioMonotonic(t *testing.T) {
	s := DefaultSchedule()
	for _, validated := range []bool{false, true} {
		prev := -1.0
		for examples := 0; examples <= 5000; examples++ {
			ratio := s.BlendRatio(examples, validated)
			if ratio < prev {
				t.Fatalf("blend ratio decreased at %d examples (validated=%v): %f < %f",
					examples, validated, ratio, prev)
			}
			if ratio < 0 || ratio > 1 {
				t.Fatalf("blend ratio out of range at %d examples: %f", examples, ratio)
			}
			prev = ratio
		}
	}
}

func TestBlendRatioZeroBelowThreshold(t *testing.T) {
	s := DefaultSchedule()
	for examples := 0; examples < s.Bootstrap; examples++ {
		if s.BlendRatio(examples, true) != 0 {
			t.Fatalf("expected 0 blend ratio at %d examples", examples)
		}
	}
}

func TestLearningRateDecays(t *testing.T) {
	s := DefaultSchedule()
	if got := s.LearningRate(0); got != s.BaseRate {
		t.Errorf("expected base rate %f at 0 examples, got %f", s.BaseRate, got)
	}
	if got := s.LearningRate(100); math.Abs(got-0.05) > 1e-9 {
		t.Errorf("expected half the base rate at the half-life, got %f", got)
	}
	prev := math.Inf(1)
	for examples := 0; examples <= 10000; examples += 50 {
		rate := s.LearningRate(examples)
		if rate > prev {
			t.Fatalf("learning rate increased at %d examples", examples)
		}
		if rate < s.MinRate {
			t.Fatalf("learning rate below floor at %d examples: %f", examples, rate)
		}
		prev = rate
	}
	if got := s.LearningRate(1_000_000); got != s.MinRate {
		t.Errorf("expected floor %f for huge counts, got %f", s.MinRate, got)
	}
}

func TestStageNames(t *testing.T) {
	s := DefaultSchedule()
	tests := []struct {
		examples int
		want     string
	}{
		{0, StageBootstrap},
		{99, StageBootstrap},
		{100, StageInitial},
		{499, StageInitial},
		{500, StageTransition},
		{1000, StageMature},
		{50000, StageMature},
	}
	for _, tt := range tests {
		if got := s.Stage(tt.examples); got != tt.want {
			t.Errorf("Stage(%d) = %s, want %s", tt.examples, got, tt.want)
		}
	}
}
