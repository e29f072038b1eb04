package cache

import (
	"context"
	"fmt"
	"time"
)

// TTLClass groups keys by how long their values stay fresh.
type TTLClass int

const (
	Short TTLClass = iota
	Medium
	Long
)

// TTLs maps each class to a concrete expiry.
type TTLs struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// DefaultTTLs returns the standard expiries: 30s, 5m, and 1h.
func DefaultTTLs() TTLs {
	return TTLs{Short: 30 * time.Second, Medium: 5 * time.Minute, Long: time.Hour}
}

func (t TTLs) For(class TTLClass) time.Duration {
	switch class {
	case Short:
		return t.Short
	case Long:
		return t.Long
	default:
		return t.Medium
	}
}

// Cache is a keyed cache-aside store. Values are JSON encoded.
type Cache interface {
	// Get decodes the cached value into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, class TTLClass) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

const AnalyticsPrefix = "analytics:"

// PoolKey is the cache key of a pool record.
func PoolKey(poolID int64) string {
	return fmt.Sprintf("pool:%d", poolID)
}

// AnalyticsKey builds a key under the analytics prefix.
func AnalyticsKey(parts ...any) string {
	key := AnalyticsPrefix
	for i, part := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(part)
	}
	return key
}

// Nop is a cache that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any, TTLClass) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }
func (Nop) DeletePrefix(context.Context, string) error { return nil }
