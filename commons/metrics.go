package commons

import "sync/atomic"

// CacheMetrics counts cache operations, safe for concurrent use
type CacheMetrics struct {
	hit               uint64
	miss              uint64
	put               uint64
	remove            uint64
	eviction          uint64
	expiration        uint64
	integrityFailure  uint64
	ioFailure         uint64
	bytesWritten      uint64
	bytesRead         uint64
	memoryHit         uint64
	memoryMiss        uint64
	deleteFailure     uint64
	serializationFail uint64
}

func (metrics *CacheMetrics) IncreaseCounterForHit(n uint64) {
	atomic.AddUint64(&metrics.hit, n)
}

func (metrics *CacheMetrics) GetCounterForHit() uint64 {
	return atomic.LoadUint64(&metrics.hit)
}

func (metrics *CacheMetrics) IncreaseCounterForMiss(n uint64) {
	atomic.AddUint64(&metrics.miss, n)
}

func (metrics *CacheMetrics) GetCounterForMiss() uint64 {
	return atomic.LoadUint64(&metrics.miss)
}

func (metrics *CacheMetrics) IncreaseCounterForPut(n uint64) {
	atomic.AddUint64(&metrics.put, n)
}

func (metrics *CacheMetrics) GetCounterForPut() uint64 {
	return atomic.LoadUint64(&metrics.put)
}

func (metrics *CacheMetrics) IncreaseCounterForRemove(n uint64) {
	atomic.AddUint64(&metrics.remove, n)
}

func (metrics *CacheMetrics) GetCounterForRemove() uint64 {
	return atomic.LoadUint64(&metrics.remove)
}

func (metrics *CacheMetrics) IncreaseCounterForEviction(n uint64) {
	atomic.AddUint64(&metrics.eviction, n)
}

func (metrics *CacheMetrics) GetCounterForEviction() uint64 {
	return atomic.LoadUint64(&metrics.eviction)
}

func (metrics *CacheMetrics) IncreaseCounterForExpiration(n uint64) {
	atomic.AddUint64(&metrics.expiration, n)
}

func (metrics *CacheMetrics) GetCounterForExpiration() uint64 {
	return atomic.LoadUint64(&metrics.expiration)
}

func (metrics *CacheMetrics) IncreaseCounterForIntegrityFailure(n uint64) {
	atomic.AddUint64(&metrics.integrityFailure, n)
}

func (metrics *CacheMetrics) GetCounterForIntegrityFailure() uint64 {
	return atomic.LoadUint64(&metrics.integrityFailure)
}

func (metrics *CacheMetrics) IncreaseCounterForIOFailure(n uint64) {
	atomic.AddUint64(&metrics.ioFailure, n)
}

func (metrics *CacheMetrics) GetCounterForIOFailure() uint64 {
	return atomic.LoadUint64(&metrics.ioFailure)
}

func (metrics *CacheMetrics) IncreaseCounterForDeleteFailure(n uint64) {
	atomic.AddUint64(&metrics.deleteFailure, n)
}

func (metrics *CacheMetrics) GetCounterForDeleteFailure() uint64 {
	return atomic.LoadUint64(&metrics.deleteFailure)
}

func (metrics *CacheMetrics) IncreaseCounterForSerializationFailure(n uint64) {
	atomic.AddUint64(&metrics.serializationFail, n)
}

func (metrics *CacheMetrics) GetCounterForSerializationFailure() uint64 {
	return atomic.LoadUint64(&metrics.serializationFail)
}

func (metrics *CacheMetrics) IncreaseBytesWritten(n uint64) {
	atomic.AddUint64(&metrics.bytesWritten, n)
}

func (metrics *CacheMetrics) GetBytesWritten() uint64 {
	return atomic.LoadUint64(&metrics.bytesWritten)
}

func (metrics *CacheMetrics) IncreaseBytesRead(n uint64) {
	atomic.AddUint64(&metrics.bytesRead, n)
}

func (metrics *CacheMetrics) GetBytesRead() uint64 {
	return atomic.LoadUint64(&metrics.bytesRead)
}

func (metrics *CacheMetrics) IncreaseCounterForMemoryHit(n uint64) {
	atomic.AddUint64(&metrics.memoryHit, n)
}

func (metrics *CacheMetrics) GetCounterForMemoryHit() uint64 {
	return atomic.LoadUint64(&metrics.memoryHit)
}

func (metrics *CacheMetrics) IncreaseCounterForMemoryMiss(n uint64) {
	atomic.AddUint64(&metrics.memoryMiss, n)
}

func (metrics *CacheMetrics) GetCounterForMemoryMiss() uint64 {
	return atomic.LoadUint64(&metrics.memoryMiss)
}
