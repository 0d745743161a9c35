// Package validation gates the promotion of learned weights: a context
// earns full trust only when its learned-arm accuracy beats the default
// arm with statistical confidence, and loses it again through rollback.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/Caliper/internal/store"
	"github.com/MikeSquared-Agency/Caliper/internal/telemetry"
)

const (
	StatusValidated        = "validated"
	StatusRejected         = "rejected"
	StatusInsufficientData = "insufficient_data"
)

type Result struct {
	Status      string  `json:"status"`
	Validated   bool    `json:"validated"`
	Confidence  float64 `json:"confidence"`
	Improvement float64 `json:"improvement"`
	Examples    int     `json:"examples"`

	LearnedAccuracy  float64 `json:"learned_accuracy"`
	BaselineAccuracy float64 `json:"baseline_accuracy"`
	LearnedSamples   int     `json:"learned_samples"`
	BaselineSamples  int     `json:"baseline_samples"`
}

// ArmSource supplies the learned-vs-default performance arms.
type ArmSource interface {
	RegimeCounts(ctx context.Context, tenantID, serviceType, contextKey, signalName string) (map[store.Regime]store.SignalCounter, error)
}

// WeightService is the slice of the learning service validation drives.
type WeightService interface {
	ApplyValidation(ctx context.Context, tenantID, contextKey, serviceType string, validated bool, confidence, improvement float64) error
	Rollback(ctx context.Context, tenantID, contextKey, serviceType, reason string) error
}

type Options struct {
	Store     store.Store
	Arms      ArmSource
	Weights   WeightService
	Telemetry telemetry.Sink
	Logger    *slog.Logger

	MinExamples         int
	MinSamplesPerArm    int
	ConfidenceThreshold float64
	MinImprovement      float64
}

type Service struct {
	store     store.Store
	arms      ArmSource
	weights   WeightService
	telemetry telemetry.Sink
	logger    *slog.Logger

	minExamples      int
	minSamplesPerArm int
	threshold        float64
	minImprovement   float64
}

func NewService(opts Options) *Service {
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MinExamples <= 0 {
		opts.MinExamples = 150
	}
	if opts.MinSamplesPerArm <= 0 {
		opts.MinSamplesPerArm = 30
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.95
	}
	return &Service{
		store:            opts.Store,
		arms:             opts.Arms,
		weights:          opts.Weights,
		telemetry:        opts.Telemetry,
		logger:           opts.Logger,
		minExamples:      opts.MinExamples,
		minSamplesPerArm: opts.MinSamplesPerArm,
		threshold:        opts.ConfidenceThreshold,
		minImprovement:   opts.MinImprovement,
	}
}

// Validate compares the learned arm against the default arm and, when
// the improvement is significant, promotes the record. Too little data
// is a normal status, not an error; errors are reserved for backend
// failures on this operator-facing path.
func (s *Service) Validate(ctx context.Context, tenantID, contextKey, serviceType string) (Result, error) {
	rec, err := s.store.GetWeightRecord(ctx, tenantID, contextKey, serviceType)
	if err != nil {
		return Result{}, fmt.Errorf("load weight record: %w", err)
	}
	if rec == nil || rec.Examples < s.minExamples {
		examples := 0
		if rec != nil {
			examples = rec.Examples
		}
		res := Result{Status: StatusInsufficientData, Examples: examples}
		s.track(tenantID, contextKey, serviceType, res)
		return res, nil
	}

	counts, err := s.arms.RegimeCounts(ctx, tenantID, serviceType, contextKey, store.SignalBlended)
	if err != nil {
		return Result{}, fmt.Errorf("load performance arms: %w", err)
	}
	learned := counts[store.RegimeLearned]
	control := counts[store.RegimeDefault]
	if learned.Total < s.minSamplesPerArm || control.Total < s.minSamplesPerArm {
		res := Result{
			Status:          StatusInsufficientData,
			Examples:        rec.Examples,
			LearnedSamples:  learned.Total,
			BaselineSamples: control.Total,
		}
		s.track(tenantID, contextKey, serviceType, res)
		return res, nil
	}

	w := welchTest(learned, control)
	validated := w.improvement > s.minImprovement && w.confidence >= s.threshold

	res := Result{
		Validated:        validated,
		Confidence:       w.confidence,
		Improvement:      w.improvement,
		Examples:         rec.Examples,
		LearnedAccuracy:  learned.Accuracy(),
		BaselineAccuracy: control.Accuracy(),
		LearnedSamples:   learned.Total,
		BaselineSamples:  control.Total,
	}
	if validated {
		res.Status = StatusValidated
	} else {
		res.Status = StatusRejected
	}

	if err := s.weights.ApplyValidation(ctx, tenantID, contextKey, serviceType, validated, w.confidence, w.improvement); err != nil {
		// The verdict stands even if persisting it failed; the next
		// sweep retries.
		s.logger.Error("failed to persist validation result",
			"tenant", tenantID, "key", contextKey, "error", err)
	}

	s.track(tenantID, contextKey, serviceType, res)
	return res, nil
}

// Rollback resets a diverged context to its defaults. Idempotent, legal
// at any learning stage.
func (s *Service) Rollback(ctx context.Context, tenantID, contextKey, serviceType, reason string) error {
	return s.weights.Rollback(ctx, tenantID, contextKey, serviceType, reason)
}

// Sweep validates every unvalidated, not-rolled-back record that has
// crossed the example threshold. Run from a ticker; one bad record
// never stops the sweep.
func (s *Service) Sweep(ctx context.Context) {
	records, err := s.store.ListWeightRecords(ctx, store.WeightFilter{Limit: 500})
	if err != nil {
		s.logger.Error("validation sweep listing failed", "error", err)
		return
	}

	for _, rec := range records {
		if rec.Validated || rec.Examples < s.minExamples {
			continue
		}
		if _, err := s.Validate(ctx, rec.TenantID, rec.ContextKey, rec.ServiceType); err != nil {
			s.logger.Warn("sweep validation failed",
				"tenant", rec.TenantID, "key", rec.ContextKey, "error", err)
		}
	}
}

// SweepLoop runs Sweep on a ticker until the context is cancelled.
func (s *Service) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Service) track(tenantID, contextKey, serviceType string, res Result) {
	validationsTotal.WithLabelValues(res.Status).Inc()
	s.telemetry.TrackEvent("validation_result", map[string]interface{}{
		"tenant_id":    tenantID,
		"context_key":  contextKey,
		"service_type": serviceType,
		"status":       res.Status,
		"confidence":   res.Confidence,
		"improvement":  res.Improvement,
		"examples":     res.Examples,
	})
}
