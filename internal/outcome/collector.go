// Package outcome correlates predictions with the ground truth that
// arrives later, and turns the difference into learning signal.
// Predictions are staged in the cache with a bounded TTL; one that
// never sees an outcome simply expires. This is best-effort learning
// input, not a ledger.
package outcome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Caliper/internal/cache"
	"github.com/MikeSquared-Agency/Caliper/internal/store"
	"github.com/MikeSquared-Agency/Caliper/internal/telemetry"
)

// Prediction is the staged record written at decision time and resolved
// when an outcome arrives.
type Prediction struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	ServiceType string `json:"service_type"`
	ContextKey  string `json:"context_key"`

	Payload           map[string]interface{} `json:"payload,omitempty"`
	PredictedValue    float64                `json:"predicted_value"`
	SignalPredictions map[string]float64     `json:"signal_predictions,omitempty"`
	SignalsUsed       []string               `json:"signals_used"`
	WeightsUsed       map[string]float64     `json:"weights_used"`
	BlendRatio        float64                `json:"blend_ratio"`

	CreatedAt time.Time `json:"created_at"`
}

// Regime reports which arm this prediction belongs to for performance
// bookkeeping: defaults-only until the blend ratio lifts off zero.
func (p *Prediction) Regime() store.Regime {
	if p.BlendRatio > 0 {
		return store.RegimeLearned
	}
	return store.RegimeDefault
}

// PredictionInput is the RecordPrediction request.
type PredictionInput struct {
	TenantID    string
	ServiceType string
	ContextKey  string

	Payload           map[string]interface{}
	PredictedValue    float64
	SignalPredictions map[string]float64
	SignalsUsed       []string
	WeightsUsed       map[string]float64
	BlendRatio        float64
}

// WeightLearner is the slice of the learning service the collector
// pushes corrections into.
type WeightLearner interface {
	LearnFromOutcome(ctx context.Context, tenantID, contextKey, serviceType, signalName string, quality float64)
}

// PerformanceRecorder receives per-signal correctness observations.
type PerformanceRecorder interface {
	Track(ctx context.Context, tenantID, serviceType, contextKey, signalName string, regime store.Regime, correct bool)
}

type Options struct {
	Cache       cache.Cache
	Store       store.Store // optional; enables the prediction audit trail
	Learning    WeightLearner
	Performance PerformanceRecorder
	Telemetry   telemetry.Sink
	Logger      *slog.Logger
	Scorer      QualityScorer

	PredictionTTL    time.Duration
	CorrectThreshold float64
	Timeout          time.Duration
}

type Collector struct {
	cache       cache.Cache
	store       store.Store
	learning    WeightLearner
	performance PerformanceRecorder
	telemetry   telemetry.Sink
	logger      *slog.Logger
	scorer      QualityScorer

	ttl       time.Duration
	threshold float64
	timeout   time.Duration
}

func NewCollector(opts Options) *Collector {
	if opts.Cache == nil {
		// No external cache configured: stage predictions in process.
		// Correlation then only works within one instance, which is the
		// documented degraded mode, not an error.
		opts.Cache = cache.NewMemory()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = AbsoluteErrorScorer{}
	}
	if opts.PredictionTTL <= 0 {
		opts.PredictionTTL = 6 * time.Hour
	}
	if opts.CorrectThreshold <= 0 {
		opts.CorrectThreshold = 0.5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 800 * time.Millisecond
	}
	return &Collector{
		cache:       opts.Cache,
		store:       opts.Store,
		learning:    opts.Learning,
		performance: opts.Performance,
		telemetry:   opts.Telemetry,
		logger:      opts.Logger,
		scorer:      opts.Scorer,
		ttl:         opts.PredictionTTL,
		threshold:   opts.CorrectThreshold,
		timeout:     opts.Timeout,
	}
}

// RecordPrediction stages a prediction and returns its correlation id.
// The only error is malformed input; backend trouble is absorbed (a
// prediction that could not be staged is indistinguishable from one
// that expired).
func (c *Collector) RecordPrediction(ctx context.Context, in PredictionInput) (string, error) {
	if in.TenantID == "" || in.ServiceType == "" || in.ContextKey == "" {
		return "", fmt.Errorf("tenant, service type and context key are required")
	}
	if len(in.SignalsUsed) == 0 {
		return "", fmt.Errorf("a prediction must name at least one signal")
	}

	pred := &Prediction{
		ID:                uuid.NewString(),
		TenantID:          in.TenantID,
		ServiceType:       in.ServiceType,
		ContextKey:        in.ContextKey,
		Payload:           in.Payload,
		PredictedValue:    in.PredictedValue,
		SignalPredictions: in.SignalPredictions,
		SignalsUsed:       in.SignalsUsed,
		WeightsUsed:       in.WeightsUsed,
		BlendRatio:        in.BlendRatio,
		CreatedAt:         time.Now().UTC(),
	}

	data, err := json.Marshal(pred)
	if err != nil {
		return "", fmt.Errorf("encode prediction: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.cache.Set(cctx, cache.PredictionKey(pred.TenantID, pred.ID), data, c.ttl)
	cancel()
	if err != nil {
		c.telemetry.TrackException(err, map[string]interface{}{
			"operation": "record_prediction", "tenant_id": pred.TenantID,
		})
	}

	c.audit(ctx, pred)

	predictionsStaged.Inc()
	return pred.ID, nil
}

// RecordOutcome resolves a prediction against the observed value. It
// never fails: an unknown or expired id is a logged no-op, and any
// downstream trouble is reported via telemetry only.
func (c *Collector) RecordOutcome(ctx context.Context, predictionID, tenantID string, observedValue float64, label string) {
	key := cache.PredictionKey(tenantID, predictionID)

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	data, ok, err := c.cache.Get(cctx, key)
	cancel()
	if err != nil {
		c.telemetry.TrackException(err, map[string]interface{}{
			"operation": "record_outcome", "tenant_id": tenantID, "prediction_id": predictionID,
		})
		return
	}
	if !ok {
		outcomesOrphaned.Inc()
		c.logger.Info("outcome for unknown or expired prediction",
			"tenant", tenantID, "prediction_id", predictionID)
		c.telemetry.TrackEvent("outcome_orphaned", map[string]interface{}{
			"tenant_id": tenantID, "prediction_id": predictionID,
		})
		return
	}

	var pred Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		c.logger.Warn("staged prediction corrupt", "tenant", tenantID, "prediction_id", predictionID)
		return
	}

	bySignal, overall := c.scorer.Score(&pred, observedValue)
	regime := pred.Regime()

	if c.learning != nil {
		for _, signal := range pred.SignalsUsed {
			c.learning.LearnFromOutcome(ctx, pred.TenantID, pred.ContextKey, pred.ServiceType, signal, bySignal[signal])
		}
	}
	if c.performance != nil {
		for _, signal := range pred.SignalsUsed {
			c.performance.Track(ctx, pred.TenantID, pred.ServiceType, pred.ContextKey,
				signal, regime, bySignal[signal] >= c.threshold)
		}
		c.performance.Track(ctx, pred.TenantID, pred.ServiceType, pred.ContextKey,
			store.SignalBlended, regime, overall >= c.threshold)
	}

	dctx, dcancel := context.WithTimeout(ctx, c.timeout)
	if err := c.cache.Delete(dctx, key); err != nil {
		c.logger.Warn("failed to clear resolved prediction", "prediction_id", predictionID, "error", err)
	}
	dcancel()

	outcomesResolved.Inc()
	c.telemetry.TrackEvent("outcome_recorded", map[string]interface{}{
		"tenant_id":     pred.TenantID,
		"service_type":  pred.ServiceType,
		"context_key":   pred.ContextKey,
		"prediction_id": predictionID,
		"label":         label,
		"quality":       overall,
		"regime":        string(regime),
	})
}

// audit best-effort persists the prediction for offline inspection.
func (c *Collector) audit(ctx context.Context, pred *Prediction) {
	if c.store == nil {
		return
	}
	id, err := uuid.Parse(pred.ID)
	if err != nil {
		return
	}
	row := &store.PredictionAudit{
		ID:          id,
		TenantID:    pred.TenantID,
		ServiceType: pred.ServiceType,
		ContextKey:  pred.ContextKey,
		Prediction:  pred.Payload,
		SignalsUsed: pred.SignalsUsed,
		WeightsUsed: pred.WeightsUsed,
	}
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.store.CreatePredictionAudit(sctx, row); err != nil {
		c.logger.Warn("prediction audit write failed", "prediction_id", pred.ID, "error", err)
	}
}
