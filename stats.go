package ircline

import (
	"sync/atomic"

	"github.com/pior/ircline/msgbuf"
)

// BroadcastStats contains statistics about broadcast operations.
// All fields are safe for concurrent access.
//
// Struct is optimized to fit within a single cache line (64 bytes).
//
// For Prometheus integration, expose these as counters. The render ratio is
// CacheMisses / (CacheHits + CacheMisses).
type BroadcastStats struct {
	Sends          uint64 // Send calls that rendered a message
	Deliveries     uint64 // Lines written to a recipient
	WriteErrors    uint64 // Lines the recipient failed to write
	Dropped        uint64 // Lines never written: breaker open or send canceled
	CacheHits      uint64 // Lines reused from the render cache
	CacheMisses    uint64 // Lines rendered
	CacheEvictions uint64 // Rendered lines replaced in a full cache
	_              uint64 // Padding to align to 64 bytes
}

// CachePoolStats contains statistics about the render cache pool.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalCaches, IdleCaches, ActiveCaches
//   - Counters: AcquireCount, AcquireWaitCount, CreatedCaches
type CachePoolStats struct {
	AcquireCount     uint64 // Total acquire attempts
	AcquireWaitCount uint64 // Acquires that had to wait
	CreatedCaches    uint64 // Total caches created

	TotalCaches  int32 // Caches in the pool (active + idle)
	IdleCaches   int32 // Caches available
	ActiveCaches int32 // Caches bound to an in-flight Send
}

// broadcastStatsCollector provides internal methods for updating broadcast stats.
// Not exported - the broadcaster updates its own stats.
type broadcastStatsCollector struct {
	stats *BroadcastStats
}

func newBroadcastStatsCollector() *broadcastStatsCollector {
	return &broadcastStatsCollector{
		stats: &BroadcastStats{},
	}
}

func (c *broadcastStatsCollector) recordSend(cache msgbuf.CacheStats) {
	atomic.AddUint64(&c.stats.Sends, 1)
	atomic.AddUint64(&c.stats.CacheHits, cache.Hits)
	atomic.AddUint64(&c.stats.CacheMisses, cache.Misses)
	atomic.AddUint64(&c.stats.CacheEvictions, cache.Evictions)
}

// cacheStatsSince returns the lookups counted in now but not in before.
func cacheStatsSince(now, before msgbuf.CacheStats) msgbuf.CacheStats {
	return msgbuf.CacheStats{
		Hits:      now.Hits - before.Hits,
		Misses:    now.Misses - before.Misses,
		Evictions: now.Evictions - before.Evictions,
	}
}

func (c *broadcastStatsCollector) recordDelivery() {
	atomic.AddUint64(&c.stats.Deliveries, 1)
}

func (c *broadcastStatsCollector) recordWriteError() {
	atomic.AddUint64(&c.stats.WriteErrors, 1)
}

func (c *broadcastStatsCollector) recordDropped(n int) {
	atomic.AddUint64(&c.stats.Dropped, uint64(n))
}

func (c *broadcastStatsCollector) snapshot() BroadcastStats {
	return BroadcastStats{
		Sends:          atomic.LoadUint64(&c.stats.Sends),
		Deliveries:     atomic.LoadUint64(&c.stats.Deliveries),
		WriteErrors:    atomic.LoadUint64(&c.stats.WriteErrors),
		Dropped:        atomic.LoadUint64(&c.stats.Dropped),
		CacheHits:      atomic.LoadUint64(&c.stats.CacheHits),
		CacheMisses:    atomic.LoadUint64(&c.stats.CacheMisses),
		CacheEvictions: atomic.LoadUint64(&c.stats.CacheEvictions),
	}
}
