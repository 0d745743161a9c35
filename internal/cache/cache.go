package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a disposable accelerator: entries may vanish at any time and
// correctness never depends on their presence.
type Cache interface {
	// Get returns (value, true, nil) on a hit and (nil, false, nil) on a
	// clean miss. The error return is reserved for backend failures.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func WeightsKey(tenantID, contextKey, serviceType string) string {
	return fmt.Sprintf("caliper:weights:%s:%s:%s", tenantID, serviceType, contextKey)
}

func PredictionKey(tenantID, predictionID string) string {
	return fmt.Sprintf("caliper:prediction:%s:%s", tenantID, predictionID)
}
