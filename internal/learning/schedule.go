package learning

import "github.com/MikeSquared-Agency/Caliper/internal/config"

// Learning stage names, by example count.
const (
	StageBootstrap  = "bootstrap"
	StageInitial    = "initial"
	StageTransition = "transition"
	StageMature     = "mature"
)

// Schedule maps an example count to a blend ratio and a learning rate.
// The ramp inside each stage is linear; boundaries and caps come from
// config so operators can tune the policy without a release.
type Schedule struct {
	Bootstrap  int // below this, blend ratio is 0
	Initial    int // ratio ramps 0 -> InitialCap across [Bootstrap, Initial)
	Transition int // ratio ramps InitialCap -> TransitionCap across [Initial, Transition)
	Mature     int // ratio ramps TransitionCap -> 1.0 across [Transition, Mature)

	InitialCap     float64
	TransitionCap  float64
	UnvalidatedCap float64 // hard ceiling until the record passes validation

	BaseRate     float64
	RateHalfLife int
	MinRate      float64

	MaxWeight float64
}

func DefaultSchedule() Schedule {
	return Schedule{
		Bootstrap:      100,
		Initial:        500,
		Transition:     1000,
		Mature:         2000,
		InitialCap:     0.5,
		TransitionCap:  0.9,
		UnvalidatedCap: 0.9,
		BaseRate:       0.1,
		RateHalfLife:   100,
		MinRate:        0.01,
		MaxWeight:      2.0,
	}
}

func ScheduleFromConfig(cfg config.LearningConfig) Schedule {
	return Schedule{
		Bootstrap:      cfg.BootstrapExamples,
		Initial:        cfg.InitialExamples,
		Transition:     cfg.TransitionExamples,
		Mature:         cfg.MatureExamples,
		InitialCap:     cfg.InitialCap,
		TransitionCap:  cfg.TransitionCap,
		UnvalidatedCap: cfg.UnvalidatedCap,
		BaseRate:       cfg.BaseLearningRate,
		RateHalfLife:   cfg.RateHalfLife,
		MinRate:        cfg.MinLearningRate,
		MaxWeight:      cfg.MaxWeight,
	}
}

// BlendRatio is monotone non-decreasing in examples. Unvalidated
// records are capped so defaults always retain a share of the vector
// until the statistical gate passes.
func (s Schedule) BlendRatio(examples int, validated bool) float64 {
	var ratio float64
	switch {
	case examples < s.Bootstrap:
		ratio = 0
	case examples < s.Initial:
		ratio = lerp(examples, s.Bootstrap, s.Initial, 0, s.InitialCap)
	case examples < s.Transition:
		ratio = lerp(examples, s.Initial, s.Transition, s.InitialCap, s.TransitionCap)
	case examples < s.Mature:
		ratio = lerp(examples, s.Transition, s.Mature, s.TransitionCap, 1.0)
	default:
		ratio = 1.0
	}
	if !validated && ratio > s.UnvalidatedCap {
		ratio = s.UnvalidatedCap
	}
	return ratio
}

// LearningRate decays hyperbolically with examples so early outcomes
// move weights quickly and mature contexts stop oscillating.
func (s Schedule) LearningRate(examples int) float64 {
	rate := s.BaseRate / (1 + float64(examples)/float64(s.RateHalfLife))
	if rate < s.MinRate {
		return s.MinRate
	}
	return rate
}

func (s Schedule) Stage(examples int) string {
	switch {
	case examples < s.Bootstrap:
		return StageBootstrap
	case examples < s.Initial:
		return StageInitial
	case examples < s.Transition:
		return StageTransition
	default:
		return StageMature
	}
}

func lerp(x, x0, x1 int, y0, y1 float64) float64 {
	return y0 + (y1-y0)*float64(x-x0)/float64(x1-x0)
}
