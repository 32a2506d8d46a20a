package preset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultTTL = 5 * time.Minute

// detachCancel returns a context that is not cancelled when parent is cancelled but
// keeps parent's deadline, so one caller giving up does not fail a shared fetch.
func detachCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if dl, ok := parent.Deadline(); ok {
		return context.WithDeadline(ctx, dl)
	}
	return context.WithCancel(ctx)
}

type cacheEntry struct {
	preset    *Preset
	expiresAt time.Time
}

func (r *Registry) valid(ent *cacheEntry, now time.Time) bool {
	return r.ttl <= 0 || now.Before(ent.expiresAt)
}

// Registry loads presets via a Fetcher and caches them with a TTL.
// Concurrent misses for one id share a single fetch. Get returns a clone.
type Registry struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	cache   map[string]*cacheEntry
	sf      singleflight.Group
}

// New creates a Registry over fetcher. Panics if fetcher is nil.
func New(fetcher Fetcher, opts ...Option) *Registry {
	if fetcher == nil {
		panic("preset: Fetcher must not be nil")
	}
	r := &Registry{
		fetcher: fetcher,
		ttl:     defaultTTL,
		now:     time.Now,
		cache:   make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the preset with the given id, fetching it on a miss or after expiry.
func (r *Registry) Get(ctx context.Context, id string) (*Preset, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	r.mu.RLock()
	ent, ok := r.cache[id]
	if ok && r.valid(ent, r.now()) {
		p := ent.preset.Clone()
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err, _ := r.sf.Do(id, func() (any, error) {
		fetchCtx, cancel := detachCancel(ctx)
		defer cancel()
		data, err := r.fetcher.Fetch(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		p, err := ParseBytes(data)
		if err != nil {
			return nil, err
		}
		if p.ID != id {
			return nil, fmt.Errorf("%w: file for %q declares id %q", ErrInvalidPreset, id, p.ID)
		}
		r.mu.Lock()
		expiresAt := time.Time{}
		if r.ttl > 0 {
			expiresAt = r.now().Add(r.ttl)
		}
		r.cache[id] = &cacheEntry{preset: p, expiresAt: expiresAt}
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Preset).Clone(), nil
}

// List returns preset ids from the Fetcher if it implements Lister; otherwise nil, nil.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lister, ok := r.fetcher.(Lister); ok {
		return lister.ListIDs(ctx)
	}
	return nil, nil
}

// Evict removes one preset from the cache.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// EvictAll clears the cache.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	r.cache = make(map[string]*cacheEntry)
	r.mu.Unlock()
}

// Close calls Close on the Fetcher if it has one (gitfetch.Fetcher removes its clone).
func (r *Registry) Close() error {
	if c, ok := r.fetcher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
