// Package performance keeps rolling per-signal accuracy aggregates so
// validation and operators can answer "how well is each signal doing
// in this context?".
package performance

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/Caliper/internal/store"
	"github.com/MikeSquared-Agency/Caliper/internal/telemetry"
)

type Options struct {
	Store     store.Store
	Telemetry telemetry.Sink
	Logger    *slog.Logger
	Timeout   time.Duration
}

type Tracker struct {
	store     store.Store
	telemetry telemetry.Sink
	logger    *slog.Logger
	timeout   time.Duration
}

func NewTracker(opts Options) *Tracker {
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 800 * time.Millisecond
	}
	return &Tracker{
		store:     opts.Store,
		telemetry: opts.Telemetry,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
	}
}

// Track appends one correctness observation. Best-effort: a failed
// write costs one sample, not the caller's request.
func (t *Tracker) Track(ctx context.Context, tenantID, serviceType, contextKey, signalName string, regime store.Regime, correct bool) {
	if t.store == nil {
		return
	}
	sample := &store.PerformanceSample{
		TenantID:    tenantID,
		ServiceType: serviceType,
		ContextKey:  contextKey,
		SignalName:  signalName,
		Regime:      regime,
		Correct:     correct,
	}

	sctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.store.RecordSample(sctx, sample); err != nil {
		t.telemetry.TrackException(err, map[string]interface{}{
			"operation": "track_performance", "tenant_id": tenantID,
			"context_key": contextKey, "signal": signalName,
		})
		return
	}

	value := 0.0
	if correct {
		value = 1.0
	}
	t.telemetry.TrackMetric("signal_correct", value, map[string]interface{}{
		"tenant_id": tenantID, "signal": signalName,
	})
}

// Get returns the aggregated view. On store failure it returns an empty
// aggregation rather than an error; status reporting degrades, the
// caller keeps working.
func (t *Tracker) Get(ctx context.Context, tenantID, serviceType, contextKey string) *store.PerformanceStats {
	empty := &store.PerformanceStats{
		TenantID:    tenantID,
		ServiceType: serviceType,
		ContextKey:  contextKey,
		BySignal:    map[string]store.SignalAccuracy{},
	}
	if t.store == nil {
		return empty
	}

	sctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	stats, err := t.store.GetPerformance(sctx, tenantID, serviceType, contextKey)
	if err != nil {
		t.telemetry.TrackException(err, map[string]interface{}{
			"operation": "get_performance", "tenant_id": tenantID,
			"context_key": contextKey,
		})
		return empty
	}
	return stats
}

// RegimeCounts reads the learned-vs-default arms for one signal.
// Validation uses this; unlike the serving paths it wants the error.
func (t *Tracker) RegimeCounts(ctx context.Context, tenantID, serviceType, contextKey, signalName string) (map[store.Regime]store.SignalCounter, error) {
	return t.store.GetRegimeCounts(ctx, tenantID, serviceType, contextKey, signalName)
}

// Compact drops raw samples older than the window. Rolling counters are
// untouched; they are running aggregates, not window sums.
func (t *Tracker) Compact(ctx context.Context, window time.Duration) {
	if t.store == nil {
		return
	}
	cutoff := time.Now().Add(-window)
	n, err := t.store.CompactSamples(ctx, cutoff)
	if err != nil {
		t.logger.Error("sample compaction failed", "error", err)
		return
	}
	if n > 0 {
		t.logger.Info("compacted performance samples", "rows", n, "cutoff", cutoff)
	}
	t.telemetry.TrackEvent("compaction_complete", map[string]interface{}{"rows": n})
}

// CompactLoop runs Compact on a ticker until the context is cancelled.
func (t *Tracker) CompactLoop(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Compact(ctx, window)
		}
	}
}
