package cache

import (
	"time"

	irodsfs_common_utils "github.com/cyverse/irodsfs-common/utils"
	"github.com/cyverse/objcache/commons"
	"github.com/cyverse/objcache/disk"
	"github.com/cyverse/objcache/transform"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

type storageOptions struct {
	clock func() time.Time
}

// Option configures a Storage
type Option func(options *storageOptions)

// WithClock sets the time source of both tiers
func WithClock(clock func() time.Time) Option {
	return func(options *storageOptions) {
		if clock != nil {
			options.clock = clock
		}
	}
}

// Storage is a two-tier object cache, memory in front of disk
type Storage[T any] struct {
	memory *MemoryStorage[T]
	disk   *disk.Store[T]
	loads  singleflight.Group
}

// NewStorage creates both tiers from config
func NewStorage[T any](config *commons.Config, transformer transform.Transformer[T], options ...Option) (*Storage[T], error) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"function": "NewStorage",
	})

	defer irodsfs_common_utils.StackTraceFromPanic(logger)

	storageOpts := &storageOptions{
		clock: time.Now,
	}
	for _, option := range options {
		option(storageOpts)
	}

	diskConfig, err := disk.NewConfigFromCommons(config)
	if err != nil {
		return nil, err
	}

	countLimit := config.MemoryCountLimit
	if countLimit <= 0 {
		countLimit = commons.MemoryCountLimitDefault
	}

	memory, err := NewMemoryStorage[T](countLimit, config.GetMemoryCleanupInterval(), storageOpts.clock)
	if err != nil {
		return nil, err
	}

	// entries evicted or expired on disk leave memory too
	diskStore, err := disk.NewStore[T](diskConfig, transformer, disk.WithClock(storageOpts.clock), disk.WithRemovalListener(memory.Remove))
	if err != nil {
		return nil, xerrors.Errorf("failed to open disk store %q: %w", diskConfig.Name, err)
	}

	return &Storage[T]{
		memory: memory,
		disk:   diskStore,
	}, nil
}

// GetDiskStore returns the disk tier
func (storage *Storage[T]) GetDiskStore() *disk.Store[T] {
	return storage.disk
}

// GetMemoryStorage returns the memory tier
func (storage *Storage[T]) GetMemoryStorage() *MemoryStorage[T] {
	return storage.memory
}

// GetMetrics returns the operation counters
func (storage *Storage[T]) GetMetrics() *commons.CacheMetrics {
	return storage.disk.GetMetrics()
}

// Put stores the value with the default expiry
func (storage *Storage[T]) Put(key string, value T) (*disk.Entry, error) {
	return storage.PutWithExpiry(key, value, storage.disk.GetDefaultExpiry())
}

// PutWithExpiry stores the value on disk, then in memory with the same expiration instant
func (storage *Storage[T]) PutWithExpiry(key string, value T, expiry commons.Expiry) (*disk.Entry, error) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Storage",
		"function": "PutWithExpiry",
	})

	defer irodsfs_common_utils.StackTraceFromPanic(logger)

	entry, err := storage.disk.PutWithExpiry(key, value, expiry)
	if err != nil {
		// an older copy in memory would outlive the failed write
		storage.memory.Remove(key)
		return nil, err
	}

	storage.memory.Put(key, value, entry.ExpiresAt)

	// the put itself may have evicted the key, e.g. a value larger than the budget
	if !storage.disk.HasEntry(key) {
		storage.memory.Remove(key)
	}
	return entry, nil
}

// Get returns the value from memory, or loads it from disk and promotes it
func (storage *Storage[T]) Get(key string) (T, error) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Storage",
		"function": "Get",
	})

	defer irodsfs_common_utils.StackTraceFromPanic(logger)

	metrics := storage.disk.GetMetrics()

	if value, ok := storage.memory.Get(key); ok {
		metrics.IncreaseCounterForMemoryHit(1)
		return value, nil
	}

	metrics.IncreaseCounterForMemoryMiss(1)

	loaded, err, shared := storage.loads.Do(key, func() (interface{}, error) {
		value, entry, loadErr := storage.disk.GetWithEntry(key)
		if loadErr != nil {
			return nil, loadErr
		}

		// a Put that raced this load already holds the newer value
		if storage.memory.PutIfAbsent(key, value, entry.ExpiresAt) && !storage.disk.HasEntry(key) {
			// evicted while loading
			storage.memory.Remove(key)
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	if shared {
		logger.Debugf("shared disk load of key %s", key)
	}

	return loaded.(T), nil
}

// GetEntry returns the disk entry of the key
func (storage *Storage[T]) GetEntry(key string) (*disk.Entry, error) {
	return storage.disk.GetEntry(key)
}

// ObjectExists tells if a live entry of the key exists
func (storage *Storage[T]) ObjectExists(key string) bool {
	return storage.disk.HasEntry(key)
}

// GetEntryKeys returns the keys of all disk entries
func (storage *Storage[T]) GetEntryKeys() []string {
	return storage.disk.GetEntryKeys()
}

// GetTotalEntries returns the number of disk entries
func (storage *Storage[T]) GetTotalEntries() int {
	return storage.disk.GetTotalEntries()
}

// TotalSize returns the disk footprint in bytes
func (storage *Storage[T]) TotalSize() int64 {
	return storage.disk.TotalSize()
}

// Remove removes the key from both tiers
func (storage *Storage[T]) Remove(key string) error {
	storage.memory.Remove(key)
	return storage.disk.Remove(key)
}

// RemoveExpired removes expired entries from both tiers, returns the number removed from disk
func (storage *Storage[T]) RemoveExpired() int {
	storage.memory.RemoveExpired()
	return storage.disk.RemoveExpired()
}

// RemoveAll clears both tiers
func (storage *Storage[T]) RemoveAll() error {
	storage.memory.RemoveAll()
	return storage.disk.RemoveAll()
}

// Sync persists the disk index
func (storage *Storage[T]) Sync() error {
	return storage.disk.Sync()
}

// Release clears the memory tier and releases the disk tier
func (storage *Storage[T]) Release() error {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Storage",
		"function": "Release",
	})

	defer irodsfs_common_utils.StackTraceFromPanic(logger)

	storage.memory.RemoveAll()
	return storage.disk.Release()
}
