package learning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/Caliper/internal/cache"
	"github.com/MikeSquared-Agency/Caliper/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore keeps weight records in memory with deep copies so the
// service's mutations only land through UpsertWeightRecord.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*store.WeightRecord
	fail    bool
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*store.WeightRecord)}
}

func recKey(tenantID, contextKey, serviceType string) string {
	return tenantID + "|" + contextKey + "|" + serviceType
}

func copyRecord(rec *store.WeightRecord) *store.WeightRecord {
	c := *rec
	c.DefaultWeights = make(map[string]float64, len(rec.DefaultWeights))
	for k, v := range rec.DefaultWeights {
		c.DefaultWeights[k] = v
	}
	c.LearnedWeights = make(map[string]float64, len(rec.LearnedWeights))
	for k, v := range rec.LearnedWeights {
		c.LearnedWeights[k] = v
	}
	return &c
}

func (f *fakeStore) GetWeightRecord(_ context.Context, tenantID, contextKey, serviceType string) (*store.WeightRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	rec, ok := f.records[recKey(tenantID, contextKey, serviceType)]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (f *fakeStore) UpsertWeightRecord(_ context.Context, rec *store.WeightRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store unavailable")
	}
	f.upserts++
	now := time.Now()
	if existing, ok := f.records[recKey(rec.TenantID, rec.ContextKey, rec.ServiceType)]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	f.records[recKey(rec.TenantID, rec.ContextKey, rec.ServiceType)] = copyRecord(rec)
	return nil
}

func (f *fakeStore) ListWeightRecords(_ context.Context, filter store.WeightFilter) ([]*store.WeightRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	var out []*store.WeightRecord
	for _, rec := range f.records {
		if filter.TenantID != "" && rec.TenantID != filter.TenantID {
			continue
		}
		if filter.ServiceType != "" && rec.ServiceType != filter.ServiceType {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

func (f *fakeStore) RecordSample(_ context.Context, _ *store.PerformanceSample) error { return nil }
func (f *fakeStore) GetPerformance(_ context.Context, _, _, _ string) (*store.PerformanceStats, error) {
	return &store.PerformanceStats{BySignal: map[string]store.SignalAccuracy{}}, nil
}
func (f *fakeStore) GetRegimeCounts(_ context.Context, _, _, _, _ string) (map[store.Regime]store.SignalCounter, error) {
	return nil, nil
}
func (f *fakeStore) CompactSamples(_ context.Context, _ time.Time) (int64, error) { return 0, nil }
func (f *fakeStore) CreatePredictionAudit(_ context.Context, _ *store.PredictionAudit) error {
	return nil
}
func (f *fakeStore) Close() error { return nil }

// failingCache errors on every operation.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache unavailable")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache unavailable")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("cache unavailable") }

func newTestService(fs *fakeStore, c cache.Cache) *Service {
	return NewService(Options{
		Store:  fs,
		Cache:  c,
		Logger: discardLogger(),
	})
}

func TestGetWeightsUnseenContext(t *testing.T) {
	svc := newTestService(newFakeStore(), cache.NewMemory())

	snap := svc.GetWeights(context.Background(), "t1", "tech:large:proposal", "risk")

	if snap.Examples != 0 {
		t.Errorf("expected 0 examples, got %d", snap.Examples)
	}
	if snap.BlendRatio != 0 {
		t.Errorf("expected 0 blend ratio, got %f", snap.BlendRatio)
	}
	for name, def := range DefaultWeights() {
		if snap.Weights[name] != def {
			t.Errorf("expected default weight %f for %s, got %f", def, name, snap.Weights[name])
		}
	}
	if snap.Source != "created" {
		t.Errorf("expected created source, got %s", snap.Source)
	}
}

func TestGetWeightsCacheHitSkipsStore(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, cache.NewMemory())
	ctx := context.Background()

	first := svc.GetWeights(ctx, "t1", "tech:large:proposal", "risk")
	if first.Source == "cache" {
		t.Fatal("first read should not come from cache")
	}
	upsertsAfterFirst := fs.upserts

	second := svc.GetWeights(ctx, "t1", "tech:large:proposal", "risk")
	if second.Source != "cache" {
		t.Errorf("expected cache source on second read, got %s", second.Source)
	}
	if fs.upserts != upsertsAfterFirst {
		t.Error("cache hit should not touch the store")
	}
}

func TestGetWeightsFailOpen(t *testing.T) {
	fs := newFakeStore()
	fs.fail = true
	svc := newTestService(fs, failingCache{})

	snap := svc.GetWeights(context.Background(), "t1", "tech:large:proposal", "risk")

	if snap.Source != "fallback" {
		t.Errorf("expected fallback source, got %s", snap.Source)
	}
	for name, def := range DefaultWeights() {
		if snap.Weights[name] != def {
			t.Errorf("expected default %s weight under failure, got %f", name, snap.Weights[name])
		}
	}
}

func TestGetWeightsWithoutStore(t *testing.T) {
	svc := NewService(Options{Logger: discardLogger()})

	snap := svc.GetWeights(context.Background(), "t1", "any", "risk")
	if snap.Source != "fallback" {
		t.Errorf("expected fallback without store, got %s", snap.Source)
	}
	if snap.Weights["rules"] != 1.0 {
		t.Errorf("expected default rules weight, got %f", snap.Weights["rules"])
	}
}

func TestLearnThenGetRoundTrip(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, cache.NewMemory())
	ctx := context.Background()

	before := svc.GetWeights(ctx, "t1", "tech:large:proposal", "risk")
	learnedBefore := before.LearnedWeights[SignalML]

	svc.LearnFromOutcome(ctx, "t1", "tech:large:proposal", "risk", SignalML, 0.2)

	after := svc.GetWeights(ctx, "t1", "tech:large:proposal", "risk")
	if after.Source == "cache" {
		t.Fatal("learn must invalidate the cached snapshot")
	}
	if after.Examples != 1 {
		t.Errorf("expected 1 example, got %d", after.Examples)
	}
	if after.BlendRatio != 0 {
		t.Errorf("expected blend ratio 0 below bootstrap threshold, got %f", after.BlendRatio)
	}

	learnedAfter := after.LearnedWeights[SignalML]
	distBefore := learnedBefore - 0.2
	distAfter := learnedAfter - 0.2
	if distAfter < 0 {
		distAfter = -distAfter
	}
	if distBefore < 0 {
		distBefore = -distBefore
	}
	if distAfter >= distBefore {
		t.Errorf("learned weight did not move toward observed quality: %f -> %f", learnedBefore, learnedAfter)
	}

	// active stays at defaults while blend ratio is 0
	if after.Weights[SignalML] != before.DefaultWeights[SignalML] {
		t.Errorf("active weights must equal defaults in bootstrap, got %f", after.Weights[SignalML])
	}
}

func TestLearnRejectsBadInput(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, nil)
	ctx := context.Background()

	svc.LearnFromOutcome(ctx, "t1", "k", "risk", SignalML, 1.5)
	svc.LearnFromOutcome(ctx, "t1", "k", "risk", SignalML, -0.1)
	svc.LearnFromOutcome(ctx, "t1", "k", "risk", "nonsense", 0.5)

	if fs.upserts != 0 {
		t.Errorf("expected no persisted updates for rejected input, got %d", fs.upserts)
	}
}

func TestLearnSwallowsStoreFailure(t *testing.T) {
	fs := newFakeStore()
	fs.fail = true
	svc := newTestService(fs, nil)

	// must not panic and must not propagate anything
	svc.LearnFromOutcome(context.Background(), "t1", "k", "risk", SignalML, 0.5)
}

func TestRollbackIdempotent(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, cache.NewMemory())
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		svc.LearnFromOutcome(ctx, "t1", "k", "risk", SignalML, 0.1)
	}
	warmed := svc.GetWeights(ctx, "t1", "k", "risk")
	if warmed.Examples != 150 {
		t.Fatalf("expected 150 examples, got %d", warmed.Examples)
	}
	if warmed.BlendRatio == 0 {
		t.Fatal("expected non-zero blend ratio past bootstrap")
	}

	if err := svc.Rollback(ctx, "t1", "k", "risk", "diverged"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	first := svc.GetWeights(ctx, "t1", "k", "risk")

	if err := svc.Rollback(ctx, "t1", "k", "risk", "diverged"); err != nil {
		t.Fatalf("second rollback: %v", err)
	}
	second := svc.GetWeights(ctx, "t1", "k", "risk")

	for _, snap := range []Snapshot{first, second} {
		if snap.Examples != 0 || snap.BlendRatio != 0 {
			t.Errorf("expected reset state, got examples=%d blend=%f", snap.Examples, snap.BlendRatio)
		}
		if !snap.RolledBack {
			t.Error("expected rolled-back flag")
		}
		for name, def := range DefaultWeights() {
			if snap.LearnedWeights[name] != def {
				t.Errorf("expected learned %s reset to default, got %f", name, snap.LearnedWeights[name])
			}
		}
	}
}

func TestRollbackOnUnseenKey(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	if err := svc.Rollback(context.Background(), "t1", "never-seen", "risk", "precaution"); err != nil {
		t.Fatalf("rollback on unseen key should lazily create: %v", err)
	}
}

func TestListDerivesStageAndActive(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, nil)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		svc.LearnFromOutcome(ctx, "t1", "k", "risk", SignalLLM, 0.9)
	}

	views, err := svc.List(ctx, store.WeightFilter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 record, got %d", len(views))
	}
	v := views[0]
	if v.Stage != StageInitial {
		t.Errorf("expected initial stage at 200 examples, got %s", v.Stage)
	}
	if len(v.ActiveWeights) != len(DefaultWeights()) {
		t.Errorf("expected full active vector, got %v", v.ActiveWeights)
	}
}
