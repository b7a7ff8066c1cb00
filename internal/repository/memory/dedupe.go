package memory

import (
	"context"
	"sync"
	"time"
)

// Deduplicator in-memory реализация repository.Deduplicator
type Deduplicator struct {
	mutex sync.Mutex
	keys  map[string]time.Time
	now   func() time.Time
}

// NewDeduplicator создает пустой дедупликатор
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{keys: make(map[string]time.Time), now: time.Now}
}

func (d *Deduplicator) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	now := d.now()
	if exp, ok := d.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.keys[key] = now.Add(ttl)
	return true, nil
}

func (d *Deduplicator) Release(_ context.Context, key string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.keys, key)
	return nil
}
