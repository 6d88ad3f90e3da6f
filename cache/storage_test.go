package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyverse/objcache/commons"
	"github.com/cyverse/objcache/disk"
	"github.com/cyverse/objcache/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now   time.Time
	mutex sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now: time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (clock *fakeClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	return clock.now
}

func (clock *fakeClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.now = clock.now.Add(duration)
}

func newTestConfig(t *testing.T) *commons.Config {
	config := commons.NewDefaultConfig()
	config.Name = "cache-test"
	config.Directory = t.TempDir()
	config.MaxSize = 0
	config.MemoryCountLimit = 4
	return config
}

func newTestStorage(t *testing.T, config *commons.Config, clock *fakeClock) *Storage[[]byte] {
	t.Helper()

	storage, err := NewStorage[[]byte](config, transform.NewRawBytesTransformer(), WithClock(clock.Now))
	require.NoError(t, err)

	t.Cleanup(func() {
		storage.Release()
	})
	return storage
}

func TestMemoryStorage(t *testing.T) {
	clock := newFakeClock()
	memory, err := NewMemoryStorage[string](2, 0, clock.Now)
	require.NoError(t, err)
	assert.Equal(t, 2, memory.GetCountLimit())

	memory.Put("a", "apple", commons.NeverExpireTime)
	memory.Put("b", "banana", clock.Now().Add(time.Minute))

	value, ok := memory.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "apple", value)

	// "b" is now the least recently used
	memory.Put("c", "cherry", commons.NeverExpireTime)
	_, ok = memory.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, memory.GetTotalEntries())

	memory.Put("d", "date", clock.Now().Add(time.Minute))
	clock.Advance(time.Minute)

	_, ok = memory.Get("d")
	assert.False(t, ok)

	memory.Remove("c")
	_, ok = memory.Get("c")
	assert.False(t, ok)

	memory.RemoveAll()
	assert.Equal(t, 0, memory.GetTotalEntries())

	_, err = NewMemoryStorage[string](0, 0, nil)
	assert.Error(t, err)
}

func TestMemoryStorageRemoveExpired(t *testing.T) {
	clock := newFakeClock()
	memory, err := NewMemoryStorage[int](10, 0, clock.Now)
	require.NoError(t, err)

	memory.Put("short", 1, clock.Now().Add(time.Second))
	memory.Put("long", 2, clock.Now().Add(time.Hour))
	memory.Put("never", 3, commons.NeverExpireTime)

	// already expired items are not stored
	memory.Put("past", 4, clock.Now())
	assert.Equal(t, 3, memory.GetTotalEntries())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, memory.RemoveExpired())
	assert.Equal(t, 2, memory.GetTotalEntries())

	assert.False(t, memory.PutIfAbsent("long", 20, commons.NeverExpireTime))
	assert.True(t, memory.PutIfAbsent("short", 10, commons.NeverExpireTime))

	value, ok := memory.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, value)
}

func TestStoragePutGet(t *testing.T) {
	storage := newTestStorage(t, newTestConfig(t), newFakeClock())

	entry, err := storage.Put("key", []byte("value"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.SizeBytes)
	assert.True(t, storage.ObjectExists("key"))

	value, err := storage.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	assert.Equal(t, uint64(1), storage.GetMetrics().GetCounterForMemoryHit())
	assert.Equal(t, uint64(0), storage.GetMetrics().GetCounterForHit())
}

func TestStoragePromotion(t *testing.T) {
	clock := newFakeClock()
	storage := newTestStorage(t, newTestConfig(t), clock)

	entry, err := storage.PutWithExpiry("key", []byte("value"), commons.NewExpirySeconds(time.Hour))
	require.NoError(t, err)

	storage.GetMemoryStorage().RemoveAll()

	value, err := storage.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
	assert.Equal(t, uint64(1), storage.GetMetrics().GetCounterForHit())

	// served from memory now
	_, err = storage.Get("key")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), storage.GetMetrics().GetCounterForHit())
	assert.Equal(t, uint64(1), storage.GetMetrics().GetCounterForMemoryHit())

	// the promoted copy keeps the disk expiration
	clock.Advance(time.Hour)
	_, ok := storage.GetMemoryStorage().Get("key")
	assert.False(t, ok)

	_, err = storage.Get("key")
	assert.True(t, commons.IsNotFoundError(err))
	assert.NoFileExists(t, entry.FilePath)
}

func TestStorageRemove(t *testing.T) {
	storage := newTestStorage(t, newTestConfig(t), newFakeClock())

	_, err := storage.Put("key", []byte("value"))
	require.NoError(t, err)

	require.NoError(t, storage.Remove("key"))
	_, err = storage.Get("key")
	assert.True(t, commons.IsNotFoundError(err))
	assert.False(t, storage.ObjectExists("key"))
	assert.Equal(t, int64(0), storage.TotalSize())
}

func TestStorageRemoveExpiredAndAll(t *testing.T) {
	clock := newFakeClock()
	storage := newTestStorage(t, newTestConfig(t), clock)

	for i := 0; i < 3; i++ {
		_, err := storage.PutWithExpiry(fmt.Sprintf("temp%d", i), []byte("value"), commons.NewExpirySeconds(time.Minute))
		require.NoError(t, err)
	}
	_, err := storage.Put("kept", []byte("value"))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.Equal(t, 3, storage.RemoveExpired())
	assert.Equal(t, []string{"kept"}, storage.GetEntryKeys())

	require.NoError(t, storage.RemoveAll())
	assert.Equal(t, 0, storage.GetTotalEntries())
	assert.Equal(t, 0, storage.GetMemoryStorage().GetTotalEntries())
	assert.Equal(t, int64(0), storage.TotalSize())
}

func TestStorageFailedPutDropsMemoryCopy(t *testing.T) {
	config := newTestConfig(t)
	fail := atomic.Bool{}

	transformer := transform.NewFuncTransformer[string](
		func(value string) ([]byte, error) {
			if fail.Load() {
				return nil, errors.New("encoder is broken")
			}
			return []byte(value), nil
		},
		func(data []byte) (string, error) {
			return string(data), nil
		},
	)

	storage, err := NewStorage[string](config, transformer)
	require.NoError(t, err)
	defer storage.Release()

	_, err = storage.Put("key", "old")
	require.NoError(t, err)

	fail.Store(true)
	_, err = storage.Put("key", "new")
	require.Error(t, err)
	assert.True(t, commons.IsSerializationError(err))

	_, ok := storage.GetMemoryStorage().Get("key")
	assert.False(t, ok)

	// the disk still holds the last successful write
	value, err := storage.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "old", value)
}

func TestStorageConcurrentLoads(t *testing.T) {
	storage := newTestStorage(t, newTestConfig(t), newFakeClock())

	_, err := storage.Put("shared", []byte("payload"))
	require.NoError(t, err)
	storage.GetMemoryStorage().RemoveAll()

	wg := sync.WaitGroup{}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			value, getErr := storage.Get("shared")
			assert.NoError(t, getErr)
			assert.Equal(t, []byte("payload"), value)
		}()
	}
	wg.Wait()

	metrics := storage.GetMetrics()
	assert.Equal(t, uint64(16), metrics.GetCounterForMemoryHit()+metrics.GetCounterForMemoryMiss())
	assert.LessOrEqual(t, metrics.GetCounterForHit(), metrics.GetCounterForMemoryMiss())
}

func TestStorageReopen(t *testing.T) {
	config := newTestConfig(t)
	clock := newFakeClock()

	storage, err := NewStorage[[]byte](config, transform.NewRawBytesTransformer(), WithClock(clock.Now))
	require.NoError(t, err)

	_, err = storage.Put("key", []byte("value"))
	require.NoError(t, err)
	require.NoError(t, storage.Release())

	reopened := newTestStorage(t, config, clock)
	value, err := reopened.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	entry, err := reopened.GetEntry("key")
	require.NoError(t, err)
	assert.IsType(t, &disk.Entry{}, entry)
}

func TestStorageEvictionLeavesMemory(t *testing.T) {
	clock := newFakeClock()
	config := newTestConfig(t)
	config.MaxSize = 100
	storage := newTestStorage(t, config, clock)

	payload := make([]byte, 40)
	for _, key := range []string{"a", "b", "c"} {
		_, err := storage.Put(key, payload)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	assert.Equal(t, []string{"b", "c"}, storage.GetEntryKeys())

	_, ok := storage.GetMemoryStorage().Get("a")
	assert.False(t, ok)

	_, err := storage.Get("a")
	assert.True(t, commons.IsNotFoundError(err))

	// a value larger than the budget is evicted by its own put
	_, err = storage.Put("huge", make([]byte, 200))
	require.NoError(t, err)

	_, ok = storage.GetMemoryStorage().Get("huge")
	assert.False(t, ok)
	assert.False(t, storage.ObjectExists("huge"))
}

func TestStorageExpiryOnDiskLeavesMemory(t *testing.T) {
	clock := newFakeClock()
	storage := newTestStorage(t, newTestConfig(t), clock)

	_, err := storage.PutWithExpiry("short", []byte("value"), commons.NewExpirySeconds(time.Minute))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, storage.GetDiskStore().RemoveExpired())
	assert.Equal(t, 0, storage.GetMemoryStorage().GetTotalEntries())
}
