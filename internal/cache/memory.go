package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is an in-process Cache. Values are stored JSON encoded, the same
// bytes the Redis backend writes, so both backends decode identically.
type Memory struct {
	ttls  TTLs
	items *ttlcache.Cache[string, []byte]
}

func NewMemory(ttls TTLs) *Memory {
	return &Memory{
		ttls:  ttls,
		items: ttlcache.New[string, []byte](ttlcache.WithDisableTouchOnHit[string, []byte]()),
	}
}

func (m *Memory) Get(ctx context.Context, key string, dest any) (bool, error) {
	item := m.items.Get(key)
	if item == nil {
		return false, nil
	}
	if err := json.Unmarshal(item.Value(), dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value any, class TTLClass) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	m.items.DeleteExpired()
	m.items.Set(key, data, m.ttls.For(class))
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.items.Delete(key)
	}
	return nil
}

func (m *Memory) DeletePrefix(ctx context.Context, prefix string) error {
	for _, key := range m.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.items.Delete(key)
		}
	}
	return nil
}
