package service

import (
	"sync"

	"github.com/cyverse/objcache/cache"
	"github.com/cyverse/objcache/commons"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promCounterForHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_hit_total",
		Help: "The total number of disk cache hits",
	})
	oldCounterForHit uint64 = 0

	promCounterForMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_miss_total",
		Help: "The total number of disk cache misses",
	})
	oldCounterForMiss uint64 = 0

	promCounterForMemoryHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_memory_hit_total",
		Help: "The total number of memory cache hits",
	})
	oldCounterForMemoryHit uint64 = 0

	promCounterForMemoryMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_memory_miss_total",
		Help: "The total number of memory cache misses",
	})
	oldCounterForMemoryMiss uint64 = 0

	promCounterForPut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_put_ops_total",
		Help: "The total number of put calls",
	})
	oldCounterForPut uint64 = 0

	promCounterForRemove = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_remove_ops_total",
		Help: "The total number of remove calls",
	})
	oldCounterForRemove uint64 = 0

	promCounterForEviction = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_evictions_total",
		Help: "The total number of entries evicted for size",
	})
	oldCounterForEviction uint64 = 0

	promCounterForExpiration = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_expirations_total",
		Help: "The total number of expired entries removed",
	})
	oldCounterForExpiration uint64 = 0

	promCounterForIntegrityFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_integrity_failures_total",
		Help: "The total number of checksum mismatches",
	})
	oldCounterForIntegrityFailure uint64 = 0

	promCounterForIOFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_io_failures_total",
		Help: "The total number of filesystem failures",
	})
	oldCounterForIOFailure uint64 = 0

	promCounterForDeleteFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_delete_failures_total",
		Help: "The total number of files that could not be deleted",
	})
	oldCounterForDeleteFailure uint64 = 0

	promCounterForSerializationFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_serialization_failures_total",
		Help: "The total number of values that could not be encoded",
	})
	oldCounterForSerializationFailure uint64 = 0

	promCounterForBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_bytes_written_total",
		Help: "The total number of bytes written",
	})
	oldCounterForBytesWritten uint64 = 0

	promCounterForBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objcache_bytes_read_total",
		Help: "The total number of bytes read",
	})
	oldCounterForBytesRead uint64 = 0

	promGaugeForDiskBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objcache_disk_bytes",
		Help: "The current disk footprint in bytes",
	})

	promGaugeForEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objcache_entries",
		Help: "The current number of disk entries",
	})

	promMutex sync.Mutex
)

// addDelta adds the growth of a monotonic counter since the last collection.
// A counter that went backwards belongs to a new storage and is added whole.
func addDelta(counter prometheus.Counter, newValue uint64, oldValue *uint64) {
	if newValue >= *oldValue {
		counter.Add(float64(newValue - *oldValue))
	} else {
		counter.Add(float64(newValue))
	}
	*oldValue = newValue
}

// CollectPrometheusMetrics exports the counters of the storage to prometheus
func CollectPrometheusMetrics(storage *cache.Storage[[]byte]) {
	promMutex.Lock()
	defer promMutex.Unlock()

	collectCounters(storage.GetMetrics())

	promGaugeForDiskBytes.Set(float64(storage.TotalSize()))
	promGaugeForEntries.Set(float64(storage.GetTotalEntries()))
}

func collectCounters(metrics *commons.CacheMetrics) {
	addDelta(promCounterForHit, metrics.GetCounterForHit(), &oldCounterForHit)
	addDelta(promCounterForMiss, metrics.GetCounterForMiss(), &oldCounterForMiss)
	addDelta(promCounterForMemoryHit, metrics.GetCounterForMemoryHit(), &oldCounterForMemoryHit)
	addDelta(promCounterForMemoryMiss, metrics.GetCounterForMemoryMiss(), &oldCounterForMemoryMiss)
	addDelta(promCounterForPut, metrics.GetCounterForPut(), &oldCounterForPut)
	addDelta(promCounterForRemove, metrics.GetCounterForRemove(), &oldCounterForRemove)
	addDelta(promCounterForEviction, metrics.GetCounterForEviction(), &oldCounterForEviction)
	addDelta(promCounterForExpiration, metrics.GetCounterForExpiration(), &oldCounterForExpiration)
	addDelta(promCounterForIntegrityFailure, metrics.GetCounterForIntegrityFailure(), &oldCounterForIntegrityFailure)
	addDelta(promCounterForIOFailure, metrics.GetCounterForIOFailure(), &oldCounterForIOFailure)
	addDelta(promCounterForDeleteFailure, metrics.GetCounterForDeleteFailure(), &oldCounterForDeleteFailure)
	addDelta(promCounterForSerializationFailure, metrics.GetCounterForSerializationFailure(), &oldCounterForSerializationFailure)
	addDelta(promCounterForBytesWritten, metrics.GetBytesWritten(), &oldCounterForBytesWritten)
	addDelta(promCounterForBytesRead, metrics.GetBytesRead(), &oldCounterForBytesRead)
}
