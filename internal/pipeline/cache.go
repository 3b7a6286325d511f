package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// SignatureKey hashes file signatures into a cache key. Equal inputs on disk
// give equal keys.
func SignatureKey(files []FileSignature, extra ...FileSignature) string {
	h := sha256.New()
	for _, sig := range append(append([]FileSignature{}, files...), extra...) {
		fmt.Fprintf(h, "%s|%d|%d\n", sig.Name, sig.Size, sig.ModTime.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FeatureCache memoises snapshots by the signature of the input files.
// Concurrent misses for the same key share one build.
type FeatureCache struct {
	builder *Builder
	cache   *lru.Cache
	group   singleflight.Group

	mu     sync.RWMutex
	latest *Snapshot
}

// NewFeatureCache returns a cache holding up to size snapshots.
func NewFeatureCache(b *Builder, size int) (*FeatureCache, error) {
	if size < 1 {
		size = 1
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	return &FeatureCache{builder: b, cache: c}, nil
}

// Get returns the snapshot for the current inputs, building it on a miss.
func (fc *FeatureCache) Get(ctx context.Context) (*Snapshot, error) {
	key := fc.builder.Key()
	if v, ok := fc.cache.Get(key); ok {
		return v.(*Snapshot), nil
	}

	v, err, _ := fc.group.Do(key, func() (interface{}, error) {
		if v, ok := fc.cache.Get(key); ok {
			return v, nil
		}
		snap, err := fc.builder.Build(ctx, key)
		if err != nil {
			return nil, err
		}
		fc.cache.Add(key, snap)
		fc.mu.Lock()
		fc.latest = snap
		fc.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		log.Printf("❌ Snapshot build failed: %v", err)
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Latest returns the most recently built snapshot, or nil.
func (fc *FeatureCache) Latest() *Snapshot {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.latest
}

// Len is the number of cached snapshots.
func (fc *FeatureCache) Len() int {
	return fc.cache.Len()
}

// Purge drops every cached snapshot.
func (fc *FeatureCache) Purge() {
	fc.cache.Purge()
}
