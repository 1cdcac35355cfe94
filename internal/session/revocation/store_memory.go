package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL is a process-local revocation list for development and tests.
// Expired entries are dropped lazily on lookup.
type InMemoryTRL struct {
	mu      sync.Mutex
	entries map[string]time.Time
	options
}

func NewInMemoryTRL(opts ...Option) *InMemoryTRL {
	return &InMemoryTRL{
		entries: make(map[string]time.Time),
		options: buildOptions(opts),
	}
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	expiresAt := t.clock().Add(ttl)
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.entries[jti]; !ok || expiresAt.After(current) {
		t.entries[jti] = expiresAt
	}
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	defer t.metrics.observe("memory", time.Now())

	t.mu.Lock()
	defer t.mu.Unlock()
	expiresAt, ok := t.entries[jti]
	if !ok {
		return false, nil
	}
	if t.clock().After(expiresAt) {
		delete(t.entries, jti)
		return false, nil
	}
	return true, nil
}
