//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE caliper_performance_samples CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE caliper_performance_counters CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE caliper_prediction_audit CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE caliper_weight_records CASCADE")
		s.Close()
	})

	return s
}

func TestUpsertAndGetWeightRecord(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	rec := &WeightRecord{
		TenantID:       "t1",
		ContextKey:     "tech:large:proposal",
		ServiceType:    "risk",
		DefaultWeights: map[string]float64{"ml": 0.9, "rules": 1.0},
		LearnedWeights: map[string]float64{"ml": 0.9, "rules": 1.0},
		LearningRate:   0.1,
	}
	if err := s.UpsertWeightRecord(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set by upsert")
	}

	got, err := s.GetWeightRecord(ctx, "t1", "tech:large:proposal", "risk")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.DefaultWeights["rules"] != 1.0 {
		t.Errorf("expected rules default 1.0, got %f", got.DefaultWeights["rules"])
	}

	// second upsert updates in place
	rec.Examples = 42
	rec.BlendRatio = 0.0
	if err := s.UpsertWeightRecord(ctx, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = s.GetWeightRecord(ctx, "t1", "tech:large:proposal", "risk")
	if got.Examples != 42 {
		t.Errorf("expected 42 examples after update, got %d", got.Examples)
	}
}

func TestGetWeightRecordMissing(t *testing.T) {
	s := setupTestDB(t)

	got, err := s.GetWeightRecord(context.Background(), "nobody", "none", "risk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unseen key")
	}
}

func TestRecordSampleAndAggregate(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	outcomes := []bool{true, true, false, true}
	for _, correct := range outcomes {
		sample := &PerformanceSample{
			TenantID:    "t1",
			ServiceType: "risk",
			ContextKey:  "tech:large:proposal",
			SignalName:  "ml",
			Regime:      RegimeDefault,
			Correct:     correct,
		}
		if err := s.RecordSample(ctx, sample); err != nil {
			t.Fatalf("record sample: %v", err)
		}
	}

	counts, err := s.GetRegimeCounts(ctx, "t1", "risk", "tech:large:proposal", "ml")
	if err != nil {
		t.Fatalf("regime counts: %v", err)
	}
	c := counts[RegimeDefault]
	if c.Total != 4 || c.Correct != 3 {
		t.Errorf("expected 3/4 correct, got %d/%d", c.Correct, c.Total)
	}

	stats, err := s.GetPerformance(ctx, "t1", "risk", "tech:large:proposal")
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if stats.BySignal["ml"].SampleCount != 4 {
		t.Errorf("expected 4 samples, got %d", stats.BySignal["ml"].SampleCount)
	}
}

func TestCompactSamplesKeepsCounters(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	sample := &PerformanceSample{
		TenantID:    "t1",
		ServiceType: "risk",
		ContextKey:  "tech:large:proposal",
		SignalName:  "rules",
		Regime:      RegimeLearned,
		Correct:     true,
	}
	if err := s.RecordSample(ctx, sample); err != nil {
		t.Fatalf("record sample: %v", err)
	}

	n, err := s.CompactSamples(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 compacted sample, got %d", n)
	}

	counts, err := s.GetRegimeCounts(ctx, "t1", "risk", "tech:large:proposal", "rules")
	if err != nil {
		t.Fatalf("regime counts: %v", err)
	}
	if counts[RegimeLearned].Total != 1 {
		t.Error("expected counter to survive compaction")
	}
}
