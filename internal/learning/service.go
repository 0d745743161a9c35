package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MikeSquared-Agency/Caliper/internal/cache"
	"github.com/MikeSquared-Agency/Caliper/internal/store"
	"github.com/MikeSquared-Agency/Caliper/internal/telemetry"
)

// Snapshot is the immutable view of a weight vector handed to callers.
// The mutable record never leaves this package.
type Snapshot struct {
	TenantID    string `json:"tenant_id"`
	ContextKey  string `json:"context_key"`
	ServiceType string `json:"service_type"`

	Weights        map[string]float64 `json:"weights"`
	DefaultWeights map[string]float64 `json:"default_weights"`
	LearnedWeights map[string]float64 `json:"learned_weights"`

	Examples   int     `json:"examples"`
	BlendRatio float64 `json:"blend_ratio"`
	Stage      string  `json:"stage"`
	Validated  bool    `json:"validated"`
	RolledBack bool    `json:"rolled_back"`

	// Source records which path produced the snapshot: cache, store,
	// created, or fallback (backend failure, defaults served).
	Source string `json:"source"`
}

// RecordView is the operator-facing listing entry: the persisted record
// plus derived fields.
type RecordView struct {
	store.WeightRecord
	Stage         string             `json:"stage"`
	ActiveWeights map[string]float64 `json:"active_weights"`
}

// Options carries the service dependencies by name. Store and Cache are
// optional: with no store the service serves defaults unconditionally
// and learning is a no-op; with no cache every read goes to the store.
type Options struct {
	Store     store.Store
	Cache     cache.Cache
	Telemetry telemetry.Sink
	Logger    *slog.Logger

	Schedule Schedule
	Defaults map[string]float64

	WeightsTTL time.Duration
	Timeout    time.Duration
}

type Service struct {
	store     store.Store
	cache     cache.Cache
	telemetry telemetry.Sink
	logger    *slog.Logger

	schedule Schedule
	defaults map[string]float64

	ttl     time.Duration
	timeout time.Duration
}

func NewService(opts Options) *Service {
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Schedule == (Schedule{}) {
		opts.Schedule = DefaultSchedule()
	}
	if opts.Defaults == nil {
		opts.Defaults = DefaultWeights()
	}
	if opts.WeightsTTL <= 0 {
		opts.WeightsTTL = 2 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 800 * time.Millisecond
	}
	return &Service{
		store:     opts.Store,
		cache:     opts.Cache,
		telemetry: opts.Telemetry,
		logger:    opts.Logger,
		schedule:  opts.Schedule,
		defaults:  opts.Defaults,
		ttl:       opts.WeightsTTL,
		timeout:   opts.Timeout,
	}
}

// GetWeights never fails: any backend trouble degrades the call to the
// default vector. It sits on the hot path of the services it serves and
// must not become a failure mode for them.
func (s *Service) GetWeights(ctx context.Context, tenantID, contextKey, serviceType string) Snapshot {
	key := cache.WeightsKey(tenantID, contextKey, serviceType)

	if s.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		data, ok, err := s.cache.Get(cctx, key)
		cancel()
		if err != nil {
			s.logger.Warn("weights cache read failed", "tenant", tenantID, "key", contextKey, "error", err)
		} else if ok {
			var snap Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				cacheHits.Inc()
				snap.Source = "cache"
				return snap
			}
			s.logger.Warn("weights cache entry corrupt", "tenant", tenantID, "key", contextKey)
		}
	}
	cacheMisses.Inc()

	if s.store == nil {
		return s.fallbackSnapshot(tenantID, contextKey, serviceType)
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	rec, err := s.store.GetWeightRecord(sctx, tenantID, contextKey, serviceType)
	cancel()
	if err != nil {
		failOpens.WithLabelValues("get_weights").Inc()
		s.telemetry.TrackException(err, map[string]interface{}{
			"operation": "get_weights", "tenant_id": tenantID,
			"context_key": contextKey, "service_type": serviceType,
		})
		return s.fallbackSnapshot(tenantID, contextKey, serviceType)
	}

	source := "store"
	if rec == nil {
		rec = s.newRecord(tenantID, contextKey, serviceType)
		source = "created"
		// Best-effort: the record is also created lazily on first learn,
		// so a failed persist here costs nothing.
		pctx, pcancel := context.WithTimeout(ctx, s.timeout)
		if err := s.store.UpsertWeightRecord(pctx, rec); err != nil {
			s.logger.Warn("lazy weight record create failed", "tenant", tenantID, "key", contextKey, "error", err)
		}
		pcancel()
	}

	snap := s.snapshot(rec, source)

	// Cache hits skip this; one event per refresh is plenty.
	s.telemetry.TrackEvent("weights_served", map[string]interface{}{
		"tenant_id":    tenantID,
		"context_key":  contextKey,
		"service_type": serviceType,
		"stage":        snap.Stage,
		"blend_ratio":  snap.BlendRatio,
		"source":       source,
	})

	if s.cache != nil {
		data, err := json.Marshal(snap)
		if err == nil {
			wctx, wcancel := context.WithTimeout(ctx, s.timeout)
			if err := s.cache.Set(wctx, key, data, s.ttl); err != nil {
				s.logger.Warn("weights cache write failed", "tenant", tenantID, "key", contextKey, "error", err)
			}
			wcancel()
		}
	}

	return snap
}

// LearnFromOutcome applies one EMA step to the named signal:
//
//	learned <- learned + rate * (quality - learned)
//
// Concurrent calls for the same key may overwrite each other; that is
// an accepted approximation, the update is a convergent nudge rather
// than a transaction. Nothing here is ever surfaced to the caller.
func (s *Service) LearnFromOutcome(ctx context.Context, tenantID, contextKey, serviceType, signalName string, quality float64) {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		learnRejected.WithLabelValues("bad_quality").Inc()
		s.logger.Warn("discarding learning signal with out-of-range quality",
			"tenant", tenantID, "key", contextKey, "signal", signalName, "quality", quality)
		return
	}
	if s.store == nil {
		learnRejected.WithLabelValues("no_store").Inc()
		return
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	rec, err := s.store.GetWeightRecord(sctx, tenantID, contextKey, serviceType)
	cancel()
	if err != nil {
		failOpens.WithLabelValues("learn_from_outcome").Inc()
		s.telemetry.TrackException(err, map[string]interface{}{
			"operation": "learn_from_outcome", "tenant_id": tenantID,
			"context_key": contextKey, "service_type": serviceType,
		})
		return
	}
	if rec == nil {
		rec = s.newRecord(tenantID, contextKey, serviceType)
	}

	if _, known := rec.DefaultWeights[signalName]; !known {
		learnRejected.WithLabelValues("unknown_signal").Inc()
		s.logger.Warn("discarding learning signal for unknown signal name",
			"tenant", tenantID, "key", contextKey, "signal", signalName)
		return
	}

	rate := s.schedule.LearningRate(rec.Examples)
	learned := rec.LearnedWeights[signalName]
	learned += rate * (quality - learned)
	rec.LearnedWeights[signalName] = clampWeight(learned, s.schedule.MaxWeight)

	rec.Examples++
	rec.BlendRatio = s.schedule.BlendRatio(rec.Examples, rec.Validated)
	rec.LearningRate = s.schedule.LearningRate(rec.Examples)

	uctx, ucancel := context.WithTimeout(ctx, s.timeout)
	err = s.store.UpsertWeightRecord(uctx, rec)
	ucancel()
	if err != nil {
		// Swallowed: learning resumes on the next outcome.
		failOpens.WithLabelValues("learn_from_outcome").Inc()
		s.telemetry.TrackException(err, map[string]interface{}{
			"operation": "learn_from_outcome", "tenant_id": tenantID,
			"context_key": contextKey, "service_type": serviceType,
		})
		return
	}

	s.invalidate(ctx, tenantID, contextKey, serviceType)

	learnUpdates.Inc()
	s.telemetry.TrackEvent("weights_learned", map[string]interface{}{
		"tenant_id":    tenantID,
		"context_key":  contextKey,
		"service_type": serviceType,
		"signal":       signalName,
		"quality":      quality,
		"examples":     rec.Examples,
		"blend_ratio":  rec.BlendRatio,
	})
}

// Rollback resets a record to its defaults. Idempotent: repeating it
// yields the same reset state. Unlike the consumer-facing paths this
// returns errors, rollback is an operator action that must not fail
// silently.
func (s *Service) Rollback(ctx context.Context, tenantID, contextKey, serviceType, reason string) error {
	if s.store == nil {
		return fmt.Errorf("rollback requires a persistent store")
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	rec, err := s.store.GetWeightRecord(sctx, tenantID, contextKey, serviceType)
	cancel()
	if err != nil {
		return fmt.Errorf("load weight record: %w", err)
	}
	if rec == nil {
		rec = s.newRecord(tenantID, contextKey, serviceType)
	}

	now := time.Now().UTC()
	rec.LearnedWeights = copyWeights(rec.DefaultWeights)
	rec.Examples = 0
	rec.BlendRatio = 0
	rec.LearningRate = s.schedule.LearningRate(0)
	rec.Validated = false
	rec.ValidationConfidence = nil
	rec.ValidationImprovement = nil
	rec.ValidatedAt = nil
	rec.RolledBack = true
	rec.RollbackReason = reason
	rec.RollbackAt = &now

	uctx, ucancel := context.WithTimeout(ctx, s.timeout)
	err = s.store.UpsertWeightRecord(uctx, rec)
	ucancel()
	if err != nil {
		return fmt.Errorf("persist rollback: %w", err)
	}

	s.invalidate(ctx, tenantID, contextKey, serviceType)

	rollbacks.Inc()
	s.telemetry.TrackEvent("weights_rolled_back", map[string]interface{}{
		"tenant_id":    tenantID,
		"context_key":  contextKey,
		"service_type": serviceType,
		"reason":       reason,
	})
	return nil
}

// ApplyValidation records a validation verdict on the weight record and
// recomputes the blend ratio under the new gate. Promotion past the
// unvalidated cap happens here and nowhere else.
func (s *Service) ApplyValidation(ctx context.Context, tenantID, contextKey, serviceType string, validated bool, confidence, improvement float64) error {
	if s.store == nil {
		return fmt.Errorf("validation requires a persistent store")
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	rec, err := s.store.GetWeightRecord(sctx, tenantID, contextKey, serviceType)
	cancel()
	if err != nil {
		return fmt.Errorf("load weight record: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no weight record for %s/%s/%s", tenantID, serviceType, contextKey)
	}

	rec.Validated = validated
	rec.ValidationConfidence = &confidence
	rec.ValidationImprovement = &improvement
	if validated {
		now := time.Now().UTC()
		rec.ValidatedAt = &now
	} else {
		rec.ValidatedAt = nil
	}
	rec.BlendRatio = s.schedule.BlendRatio(rec.Examples, rec.Validated)

	uctx, ucancel := context.WithTimeout(ctx, s.timeout)
	err = s.store.UpsertWeightRecord(uctx, rec)
	ucancel()
	if err != nil {
		return fmt.Errorf("persist validation result: %w", err)
	}

	s.invalidate(ctx, tenantID, contextKey, serviceType)
	return nil
}

// List is the operator inspection surface: persisted records with the
// derived stage and active vector attached.
func (s *Service) List(ctx context.Context, filter store.WeightFilter) ([]RecordView, error) {
	if s.store == nil {
		return nil, fmt.Errorf("listing requires a persistent store")
	}
	records, err := s.store.ListWeightRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, RecordView{
			WeightRecord:  *rec,
			Stage:         s.schedule.Stage(rec.Examples),
			ActiveWeights: Blend(rec.LearnedWeights, rec.DefaultWeights, rec.BlendRatio),
		})
	}
	return views, nil
}

// Schedule exposes the active schedule to collaborating services
// (validation needs the stage boundaries).
func (s *Service) Schedule() Schedule {
	return s.schedule
}

func (s *Service) invalidate(ctx context.Context, tenantID, contextKey, serviceType string) {
	if s.cache == nil {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.cache.Delete(dctx, cache.WeightsKey(tenantID, contextKey, serviceType)); err != nil {
		// The stale entry ages out at the TTL; readers are never stuck
		// with it indefinitely.
		s.logger.Warn("cache invalidation failed", "tenant", tenantID, "key", contextKey, "error", err)
	}
}

func (s *Service) newRecord(tenantID, contextKey, serviceType string) *store.WeightRecord {
	return &store.WeightRecord{
		TenantID:       tenantID,
		ContextKey:     contextKey,
		ServiceType:    serviceType,
		DefaultWeights: copyWeights(s.defaults),
		LearnedWeights: copyWeights(s.defaults),
		Examples:       0,
		BlendRatio:     0,
		LearningRate:   s.schedule.LearningRate(0),
	}
}

func (s *Service) snapshot(rec *store.WeightRecord, source string) Snapshot {
	return Snapshot{
		TenantID:       rec.TenantID,
		ContextKey:     rec.ContextKey,
		ServiceType:    rec.ServiceType,
		Weights:        Blend(rec.LearnedWeights, rec.DefaultWeights, rec.BlendRatio),
		DefaultWeights: copyWeights(rec.DefaultWeights),
		LearnedWeights: copyWeights(rec.LearnedWeights),
		Examples:       rec.Examples,
		BlendRatio:     rec.BlendRatio,
		Stage:          s.schedule.Stage(rec.Examples),
		Validated:      rec.Validated,
		RolledBack:     rec.RolledBack,
		Source:         source,
	}
}

func (s *Service) fallbackSnapshot(tenantID, contextKey, serviceType string) Snapshot {
	defaults := copyWeights(s.defaults)
	return Snapshot{
		TenantID:       tenantID,
		ContextKey:     contextKey,
		ServiceType:    serviceType,
		Weights:        copyWeights(defaults),
		DefaultWeights: defaults,
		LearnedWeights: copyWeights(defaults),
		Examples:       0,
		BlendRatio:     0,
		Stage:          StageBootstrap,
		Source:         "fallback",
	}
}
