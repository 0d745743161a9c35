package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Regime labels which weight vector was in force when a performance
// sample was recorded. Validation compares the two arms.
type Regime string

const (
	RegimeDefault Regime = "default"
	RegimeLearned Regime = "learned"
)

// SignalBlended is the synthetic signal name under which the overall
// (blended) prediction correctness is tracked, alongside the real
// per-signal entries.
const SignalBlended = "blended"

// WeightRecord is the system of record for one
// (tenant, context, service) learning bucket.
type WeightRecord struct {
	TenantID    string `json:"tenant_id"`
	ContextKey  string `json:"context_key"`
	ServiceType string `json:"service_type"`

	DefaultWeights map[string]float64 `json:"default_weights"`
	LearnedWeights map[string]float64 `json:"learned_weights"`

	Examples     int     `json:"examples"`
	BlendRatio   float64 `json:"blend_ratio"`
	LearningRate float64 `json:"learning_rate"`

	Validated             bool       `json:"validated"`
	ValidationConfidence  *float64   `json:"validation_confidence,omitempty"`
	ValidationImprovement *float64   `json:"validation_improvement,omitempty"`
	ValidatedAt           *time.Time `json:"validated_at,omitempty"`

	RolledBack     bool       `json:"rolled_back"`
	RollbackReason string     `json:"rollback_reason,omitempty"`
	RollbackAt     *time.Time `json:"rollback_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WeightFilter struct {
	TenantID      string
	ServiceType   string
	ContextKey    string
	ValidatedOnly bool
	RolledBack    *bool
	Limit         int
	Offset        int
}

// PerformanceSample is one append-only correctness observation.
type PerformanceSample struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ServiceType string    `json:"service_type"`
	ContextKey  string    `json:"context_key"`
	SignalName  string    `json:"signal_name"`
	Regime      Regime    `json:"regime"`
	Correct     bool      `json:"correct"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignalCounter is a rolling (total, correct) pair. Counters survive
// sample compaction; they are running aggregates, not window sums.
type SignalCounter struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

func (c SignalCounter) Accuracy() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Correct) / float64(c.Total)
}

type SignalAccuracy struct {
	Accuracy    float64 `json:"accuracy"`
	SampleCount int     `json:"sample_count"`
}

type PerformanceStats struct {
	TenantID         string                    `json:"tenant_id"`
	ServiceType      string                    `json:"service_type"`
	ContextKey       string                    `json:"context_key"`
	TotalPredictions int                       `json:"total_predictions"`
	BySignal         map[string]SignalAccuracy `json:"by_signal"`
}

// PredictionAudit is the optional persisted trail of a prediction.
// The cache copy is authoritative for outcome correlation; this row
// exists for offline inspection only.
type PredictionAudit struct {
	ID          uuid.UUID              `json:"id"`
	TenantID    string                 `json:"tenant_id"`
	ServiceType string                 `json:"service_type"`
	ContextKey  string                 `json:"context_key"`
	Prediction  map[string]interface{} `json:"prediction,omitempty"`
	SignalsUsed []string               `json:"signals_used"`
	WeightsUsed map[string]float64     `json:"weights_used"`
	CreatedAt   time.Time              `json:"created_at"`
}

type Store interface {
	// GetWeightRecord returns (nil, nil) when the key has never been seen.
	GetWeightRecord(ctx context.Context, tenantID, contextKey, serviceType string) (*WeightRecord, error)
	UpsertWeightRecord(ctx context.Context, rec *WeightRecord) error
	ListWeightRecords(ctx context.Context, filter WeightFilter) ([]*WeightRecord, error)

	// RecordSample appends the sample and bumps the rolling counter for
	// its (tenant, service, context, signal, regime) key.
	RecordSample(ctx context.Context, s *PerformanceSample) error
	GetPerformance(ctx context.Context, tenantID, serviceType, contextKey string) (*PerformanceStats, error)
	GetRegimeCounts(ctx context.Context, tenantID, serviceType, contextKey, signalName string) (map[Regime]SignalCounter, error)
	CompactSamples(ctx context.Context, olderThan time.Time) (int64, error)

	CreatePredictionAudit(ctx context.Context, a *PredictionAudit) error

	Close() error
}
