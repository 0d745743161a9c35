package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Errorf("expected v, got %s", val)
	}
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if ok {
		t.Error("expected miss")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "k")
	if ok {
		t.Error("expected entry to expire")
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, "k", []byte("v"), time.Minute)
	_ = m.Delete(ctx, "k")
	_, ok, _ := m.Get(ctx, "k")
	if ok {
		t.Error("expected delete to remove entry")
	}
}

func TestKeyBuilders(t *testing.T) {
	if got := WeightsKey("t1", "tech:large:proposal", "risk"); got != "caliper:weights:t1:risk:tech:large:proposal" {
		t.Errorf("unexpected weights key %s", got)
	}
	if got := PredictionKey("t1", "abc"); got != "caliper:prediction:t1:abc" {
		t.Errorf("unexpected prediction key %s", got)
	}
}
