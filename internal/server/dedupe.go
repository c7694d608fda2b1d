package server

import (
	"context"
	"sync"
	"time"
)

// Deduper records webhook message ids. *redis.Client satisfies it.
type Deduper interface {
	FirstDelivery(ctx context.Context, sid string) (bool, error)
}

// MemoryDeduper is the single-process Deduper used when Redis is not configured.
type MemoryDeduper struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	seen  map[string]time.Time
	calls uint64
}

// NewMemoryDeduper creates a deduper that forgets ids after ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// FirstDelivery reports whether sid has not been seen within the ttl.
func (d *MemoryDeduper) FirstDelivery(_ context.Context, sid string) (bool, error) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.calls%256 == 0 {
		for k, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, k)
			}
		}
	}

	if exp, ok := d.seen[sid]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[sid] = now.Add(d.ttl)
	return true, nil
}
