// Package cache implements the JPIP data-bin cache: a precinct-keyed
// map with a memory/entry-count cap, pluggable eviction strategies,
// and atomic hit/miss/eviction statistics safe for concurrent
// store/retrieve from many callers.
//
// Grounded on codec/registry.go's mutex-guarded map with a
// bounded-capacity store/lookup pair, one exclusive lock held only
// across the map mutation itself, never across I/O. Store/retrieve
// must stay atomic with respect to the map invariants while concurrent
// reads proceed independently, so this package uses a sync.RWMutex
// rather than a single sync.Mutex, since retrieve (a read of the map
// plus an atomic stats bump) does not need to exclude other retrieves.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cocosip/go-jp3d"
)

// DataBin is the streaming payload for one precinct and quality layer.
type DataBin struct {
	BinID         uint64
	TileX, TileY, TileZ int
	ResolutionLevel int
	QualityLayer    int
	Bytes           []byte
	IsComplete      bool
}

// Entry is one cached precinct's bin, its spatial hint, and access
// bookkeeping. lastAccessNano is touched from Retrieve under only a
// read lock on the owning Cache, so it is updated atomically rather
// than guarded by the Cache's mutex.
type Entry struct {
	Key        jp3d.Precinct3D
	Bin        DataBin
	RegionHint jp3d.Region
	Size       int

	lastAccessNano int64
}

// LastAccess returns the entry's last-touched instant.
func (e *Entry) LastAccess() time.Time {
	return time.Unix(0, atomic.LoadInt64(&e.lastAccessNano))
}

func (e *Entry) touch() {
	atomic.StoreInt64(&e.lastAccessNano, nextTick())
}

// Strategy selects how Store evicts entries when a new one would
// exceed the cache's caps.
type Strategy int

const (
	// StrategyLRU evicts the oldest LastAccess first.
	StrategyLRU Strategy = iota
	// StrategySpatialProximity evicts the fraction of entries farthest
	// from a configured centre, in voxel space.
	StrategySpatialProximity
	// StrategyViewFrustum evicts every entry whose RegionHint does not
	// intersect a configured frustum region.
	StrategyViewFrustum
	// StrategyResolutionLevel evicts every entry whose key resolution
	// level is at or below a configured maximum.
	StrategyResolutionLevel
)

// Params configures a Cache's capacity and eviction policy.
type Params struct {
	MaxMemoryBytes int64
	MaxEntries     int
	Strategy       Strategy

	// SpatialCenterX/Y/Z and SpatialTargetFraction configure
	// StrategySpatialProximity.
	SpatialCenterX, SpatialCenterY, SpatialCenterZ float64
	SpatialTargetFraction                          float64

	// Frustum configures StrategyViewFrustum.
	Frustum jp3d.Region

	// ResolutionMax configures StrategyResolutionLevel.
	ResolutionMax int
}

// Stats reports cache usage counters. HitRate is computed on demand
// from Hits/TotalRequests.
type Stats struct {
	TotalRequests int64
	Hits          int64
	Evictions     int64
	MemoryUsed    int64
	EntryCount    int
}

// HitRate returns Hits/TotalRequests, or 0 when there have been no
// requests yet.
func (s Stats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests)
}

// Cache is the JPIP data-bin cache: a Precinct3D-keyed map guarded by
// a single RWMutex, with atomic usage statistics.
type Cache struct {
	mu      sync.RWMutex
	params  Params
	entries map[jp3d.Precinct3D]*Entry
	memory  int64

	totalRequests int64
	hits          int64
	evictions     int64
}

// New constructs an empty Cache under params.
func New(params Params) *Cache {
	return &Cache{
		params:  params,
		entries: make(map[jp3d.Precinct3D]*Entry),
	}
}

// Store inserts or replaces the entry for key. If adding bin would
// exceed MaxMemoryBytes or MaxEntries, Store evicts entries under the
// configured Strategy until it fits. If eviction cannot free enough
// space, Store returns false without caching; this is never a
// user-visible error.
func (c *Cache) Store(key jp3d.Precinct3D, bin DataBin, regionHint jp3d.Region) bool {
	size := len(bin.Bytes)
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.memory -= int64(existing.Size)
		delete(c.entries, key)
	}

	if c.params.MaxMemoryBytes > 0 {
		for c.memory+int64(size) > c.params.MaxMemoryBytes && len(c.entries) > 0 {
			if !c.evictOneLocked() {
				break
			}
		}
		if c.memory+int64(size) > c.params.MaxMemoryBytes {
			return false
		}
	}
	if c.params.MaxEntries > 0 {
		for len(c.entries) >= c.params.MaxEntries {
			if !c.evictOneLocked() {
				break
			}
		}
		if len(c.entries) >= c.params.MaxEntries {
			return false
		}
	}

	entry := &Entry{Key: key, Bin: bin, RegionHint: regionHint, Size: size}
	entry.touch()
	c.entries[key] = entry
	c.memory += int64(size)
	return true
}

// Retrieve looks up key, updating LastAccess and hit counters. It
// takes only a read lock on the map: concurrent retrievals do not
// exclude one another, per the package's own RWMutex rationale above.
// The statistics counters and the entry's LastAccess are each updated
// atomically rather than under the map's exclusive lock.
func (c *Cache) Retrieve(key jp3d.Precinct3D) (DataBin, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	atomic.AddInt64(&c.totalRequests, 1)
	if !ok {
		return DataBin{}, false
	}
	e.touch()
	atomic.AddInt64(&c.hits, 1)
	return e.Bin, true
}

// InvalidateRegion removes every entry whose RegionHint intersects
// region.
func (c *Cache) InvalidateRegion(region jp3d.Region) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if _, ok := e.RegionHint.Intersect(region); ok {
			c.memory -= int64(e.Size)
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache's usage counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		TotalRequests: atomic.LoadInt64(&c.totalRequests),
		Hits:          atomic.LoadInt64(&c.hits),
		Evictions:     c.evictions,
		MemoryUsed:    c.memory,
		EntryCount:    len(c.entries),
	}
}

// evictOneLocked removes one entry under c.params.Strategy and
// returns whether it removed anything. Callers must hold c.mu.
func (c *Cache) evictOneLocked() bool {
	if len(c.entries) == 0 {
		return false
	}
	switch c.params.Strategy {
	case StrategySpatialProximity:
		return c.evictSpatialLocked()
	case StrategyViewFrustum:
		return c.evictFrustumLocked()
	case StrategyResolutionLevel:
		return c.evictResolutionLocked()
	default:
		return c.evictLRULocked()
	}
}

func (c *Cache) evictLRULocked() bool {
	var oldestKey jp3d.Precinct3D
	var oldestTime time.Time
	found := false
	for k, e := range c.entries {
		if !found || e.LastAccess().Before(oldestTime) {
			oldestKey, oldestTime, found = k, e.LastAccess(), true
		}
	}
	if !found {
		return false
	}
	c.removeLocked(oldestKey)
	return true
}

func (c *Cache) evictSpatialLocked() bool {
	type scored struct {
		key  jp3d.Precinct3D
		dist float64
	}
	cx, cy, cz := c.params.SpatialCenterX, c.params.SpatialCenterY, c.params.SpatialCenterZ
	scores := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		mx := float64(e.RegionHint.X0+e.RegionHint.X1) / 2
		my := float64(e.RegionHint.Y0+e.RegionHint.Y1) / 2
		mz := float64(e.RegionHint.Z0+e.RegionHint.Z1) / 2
		dx, dy, dz := mx-cx, my-cy, mz-cz
		scores = append(scores, scored{key: k, dist: dx*dx + dy*dy + dz*dz})
	}
	frac := c.params.SpatialTargetFraction
	if frac <= 0 {
		frac = 0.1
	}
	n := int(float64(len(scores)) * frac)
	if n < 1 {
		n = 1
	}
	// selection sort for the n farthest entries; caches are small
	// enough that this beats pulling in a sort-interface dependency
	// for a one-shot partial selection.
	for i := 0; i < n && i < len(scores); i++ {
		maxIdx := i
		for j := i + 1; j < len(scores); j++ {
			if scores[j].dist > scores[maxIdx].dist {
				maxIdx = j
			}
		}
		scores[i], scores[maxIdx] = scores[maxIdx], scores[i]
		c.removeLocked(scores[i].key)
	}
	return true
}

func (c *Cache) evictFrustumLocked() bool {
	removed := false
	for k, e := range c.entries {
		if _, ok := e.RegionHint.Intersect(c.params.Frustum); !ok {
			c.removeLocked(k)
			removed = true
		}
	}
	return removed
}

func (c *Cache) evictResolutionLocked() bool {
	removed := false
	for k, e := range c.entries {
		if e.Key.ResolutionLevel <= c.params.ResolutionMax {
			c.removeLocked(k)
			removed = true
		}
	}
	return removed
}

func (c *Cache) removeLocked(key jp3d.Precinct3D) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.memory -= int64(e.Size)
	delete(c.entries, key)
	c.evictions++
}

// accessTick is a process-wide logical clock for Entry.LastAccess.
// A real wall-clock read (time.Now()) is too coarse to guarantee
// strict ordering between Store/Retrieve calls issued back-to-back in
// a tight loop on every platform; a monotonically increasing counter
// packed into a time.Time gives LRU a total, deterministic order
// while keeping LastAccess's exported type the Instant §3 calls for.
var accessTick int64

func nextTick() int64 {
	return atomic.AddInt64(&accessTick, 1)
}
