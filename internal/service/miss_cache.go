package service

import (
	"context"
	"sync"
	"time"
)

// MissCache remembers lookups that came back empty, so hot paths do not
// hammer the database for identities that do not exist. Entries are scoped
// by namespace and expire on their own; Forget drops a whole namespace when
// the underlying data changes.
type MissCache interface {
	Seen(ctx context.Context, namespace, key string) (bool, error)
	Remember(ctx context.Context, namespace, key string, ttl time.Duration) error
	Forget(ctx context.Context, namespace string) error
}

type NoopMissCache struct{}

func NewNoopMissCache() *NoopMissCache { return &NoopMissCache{} }

func (NoopMissCache) Seen(context.Context, string, string) (bool, error) { return false, nil }

func (NoopMissCache) Remember(context.Context, string, string, time.Duration) error { return nil }

func (NoopMissCache) Forget(context.Context, string) error { return nil }

type InMemoryMissCache struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]time.Time
}

func NewInMemoryMissCache() *InMemoryMissCache {
	return &InMemoryMissCache{namespaces: make(map[string]map[string]time.Time)}
}

func (c *InMemoryMissCache) Seen(_ context.Context, namespace, key string) (bool, error) {
	c.mu.RLock()
	expiresAt, ok := c.namespaces[namespace][key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(expiresAt) {
		c.mu.Lock()
		if ns, exists := c.namespaces[namespace]; exists {
			delete(ns, key)
			if len(ns) == 0 {
				delete(c.namespaces, namespace)
			}
		}
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *InMemoryMissCache) Remember(_ context.Context, namespace, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ns, ok := c.namespaces[namespace]
	if !ok {
		ns = make(map[string]time.Time)
		c.namespaces[namespace] = ns
	}
	ns[key] = time.Now().UTC().Add(ttl)
	return nil
}

func (c *InMemoryMissCache) Forget(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.namespaces, namespace)
	return nil
}
