package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jp3d"
)

func key(i int) jp3d.Precinct3D {
	return jp3d.Precinct3D{IX: i, IY: 0, IZ: 0, ResolutionLevel: 0, Component: 0, Subband: jp3d.SubbandLLL}
}

// TestLRUEviction covers max_entries=3, storing k0..k4 in order, then
// asserts k0 is evicted and k4 is a hit.
func TestLRUEviction(t *testing.T) {
	c := New(Params{MaxEntries: 3, Strategy: StrategyLRU})
	for i := 0; i < 5; i++ {
		ok := c.Store(key(i), DataBin{BinID: uint64(i), Bytes: make([]byte, 48)}, jp3d.Region{})
		require.True(t, ok)
	}
	stats := c.Stats()
	require.LessOrEqual(t, stats.EntryCount, 3)

	_, ok := c.Retrieve(key(0))
	require.False(t, ok)
	_, ok = c.Retrieve(key(4))
	require.True(t, ok)
}

func TestHitRateMonotonicity(t *testing.T) {
	c := New(Params{MaxEntries: 10, MaxMemoryBytes: 10000, Strategy: StrategyLRU})
	c.Store(key(0), DataBin{Bytes: make([]byte, 16)}, jp3d.Region{})

	c.Retrieve(key(0))
	c.Retrieve(key(1))
	c.Retrieve(key(0))

	stats := c.Stats()
	require.LessOrEqual(t, stats.Hits, stats.TotalRequests)
	require.LessOrEqual(t, stats.MemoryUsed, int64(stats.EntryCount*10000+10000))
	require.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestConcurrentStoreRetrieve(t *testing.T) {
	c := New(Params{MaxEntries: 50, MaxMemoryBytes: 1 << 20, Strategy: StrategyLRU})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := key(i % 10)
			c.Store(k, DataBin{BinID: uint64(i), Bytes: make([]byte, 8)}, jp3d.Region{})
			c.Retrieve(k)
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	require.LessOrEqual(t, stats.Hits, stats.TotalRequests)
	require.LessOrEqual(t, stats.MemoryUsed, int64(1<<20))
}

func TestInvalidateRegionRemovesIntersecting(t *testing.T) {
	c := New(Params{MaxEntries: 10, Strategy: StrategyLRU})
	for i := 0; i < 4; i++ {
		region := jp3d.NewRegion(i*10, 0, 0, 5, 5, 5)
		c.Store(key(i), DataBin{Bytes: make([]byte, 4)}, region)
	}
	removed := c.InvalidateRegion(jp3d.NewRegion(0, 0, 0, 6, 5, 5))
	require.Equal(t, 1, removed)
	_, ok := c.Retrieve(key(0))
	require.False(t, ok)
}

func TestResolutionLevelEviction(t *testing.T) {
	c := New(Params{MaxEntries: 1, Strategy: StrategyResolutionLevel, ResolutionMax: 1})
	low := jp3d.Precinct3D{ResolutionLevel: 1}
	high := jp3d.Precinct3D{ResolutionLevel: 2}
	c.Store(low, DataBin{Bytes: []byte("a")}, jp3d.Region{})
	ok := c.Store(high, DataBin{Bytes: []byte("b")}, jp3d.Region{})
	require.True(t, ok)
	_, ok = c.Retrieve(low)
	require.False(t, ok)
	_, ok = c.Retrieve(high)
	require.True(t, ok)
}

func TestSpatialProximityEvictsFarthest(t *testing.T) {
	c := New(Params{
		MaxEntries: 2, Strategy: StrategySpatialProximity,
		SpatialCenterX: 0, SpatialCenterY: 0, SpatialCenterZ: 0,
		SpatialTargetFraction: 0.5,
	})
	near := jp3d.Precinct3D{IX: 0}
	mid := jp3d.Precinct3D{IX: 1}
	far := jp3d.Precinct3D{IX: 2}
	c.Store(near, DataBin{Bytes: []byte("n")}, jp3d.NewRegion(0, 0, 0, 1, 1, 1))
	c.Store(mid, DataBin{Bytes: []byte("m")}, jp3d.NewRegion(5, 5, 5, 1, 1, 1))
	// Cache is now full (MaxEntries=2); storing far must evict at
	// least the farthest-from-centre of the two existing entries
	// (mid), since the whole point of spatial eviction is to keep the
	// entries nearest the configured centre.
	ok := c.Store(far, DataBin{Bytes: []byte("f")}, jp3d.NewRegion(1000, 1000, 1000, 1, 1, 1))
	require.True(t, ok)
	_, okNear := c.Retrieve(near)
	require.True(t, okNear)
	_, okMid := c.Retrieve(mid)
	require.False(t, okMid)
}

func TestStoreRejectsWhenEvictionCannotFreeEnoughSpace(t *testing.T) {
	c := New(Params{MaxMemoryBytes: 10, Strategy: StrategyLRU})
	ok := c.Store(key(0), DataBin{Bytes: make([]byte, 100)}, jp3d.Region{})
	require.False(t, ok)
}

func TestManyKeysDistinct(t *testing.T) {
	c := New(Params{MaxEntries: 100})
	for i := 0; i < 20; i++ {
		c.Store(key(i), DataBin{Bytes: []byte(fmt.Sprintf("v%d", i))}, jp3d.Region{})
	}
	for i := 0; i < 20; i++ {
		bin, ok := c.Retrieve(key(i))
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("v%d", i), string(bin.Bytes))
	}
}
