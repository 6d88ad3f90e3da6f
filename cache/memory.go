package cache

import (
	"sync"
	"time"

	"github.com/cyverse/objcache/commons"
	lrucache "github.com/hashicorp/golang-lru"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/xerrors"
)

type memoryItem[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStorage is the in-memory tier. go-cache holds the items and drops expired ones in
// the background, the LRU tracks recency and caps the number of items.
type MemoryStorage[T any] struct {
	countLimit      int
	cleanupInterval time.Duration
	clock           func() time.Time
	items           *gocache.Cache
	recency         *lrucache.Cache
	mutex           sync.Mutex
}

// NewMemoryStorage creates a new MemoryStorage holding at most countLimit items
func NewMemoryStorage[T any](countLimit int, cleanupInterval time.Duration, clock func() time.Time) (*MemoryStorage[T], error) {
	if countLimit <= 0 {
		return nil, xerrors.Errorf("memory count limit must be positive, got %d", countLimit)
	}

	if clock == nil {
		clock = time.Now
	}

	items := gocache.New(gocache.NoExpiration, cleanupInterval)

	// evicting from the LRU drops the item. go-cache's own eviction callback is not
	// registered, it would call back into the LRU while the LRU holds its lock.
	recency, err := lrucache.NewWithEvict(countLimit, func(key interface{}, _ interface{}) {
		if k, ok := key.(string); ok {
			items.Delete(k)
		}
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create lru cache: %w", err)
	}

	return &MemoryStorage[T]{
		countLimit:      countLimit,
		cleanupInterval: cleanupInterval,
		clock:           clock,
		items:           items,
		recency:         recency,
	}, nil
}

// GetCountLimit returns the maximum number of items
func (storage *MemoryStorage[T]) GetCountLimit() int {
	return storage.countLimit
}

// Put adds an item expiring at expiresAt
func (storage *MemoryStorage[T]) Put(key string, value T, expiresAt time.Time) {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	storage.putLocked(key, value, expiresAt)
}

// PutIfAbsent adds an item unless a live item of the key is present, returns true if added
func (storage *MemoryStorage[T]) PutIfAbsent(key string, value T, expiresAt time.Time) bool {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	if data, exist := storage.items.Get(key); exist {
		if item, ok := data.(*memoryItem[T]); ok && !commons.IsExpired(item.expiresAt, storage.clock()) {
			return false
		}
	}

	storage.putLocked(key, value, expiresAt)
	return true
}

func (storage *MemoryStorage[T]) putLocked(key string, value T, expiresAt time.Time) {
	now := storage.clock()
	if commons.IsExpired(expiresAt, now) {
		storage.removeLocked(key)
		return
	}

	ttl := gocache.NoExpiration
	if expiresAt.Before(commons.NeverExpireTime) {
		// a hint for the janitor, Get checks expiresAt against the clock
		ttl = expiresAt.Sub(now)
	}

	storage.items.Set(key, &memoryItem[T]{
		value:     value,
		expiresAt: expiresAt,
	}, ttl)
	storage.recency.Add(key, struct{}{})
}

// Get returns the item of the key if it is present and not expired
func (storage *MemoryStorage[T]) Get(key string) (T, bool) {
	var zero T

	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	data, exist := storage.items.Get(key)
	if !exist {
		storage.recency.Remove(key)
		return zero, false
	}

	item, ok := data.(*memoryItem[T])
	if !ok {
		storage.removeLocked(key)
		return zero, false
	}

	if commons.IsExpired(item.expiresAt, storage.clock()) {
		storage.removeLocked(key)
		return zero, false
	}

	storage.recency.Get(key)
	return item.value, true
}

// Remove removes the item of the key
func (storage *MemoryStorage[T]) Remove(key string) {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	storage.removeLocked(key)
}

func (storage *MemoryStorage[T]) removeLocked(key string) {
	storage.recency.Remove(key)
	storage.items.Delete(key)
}

// RemoveExpired removes expired items and returns the number removed
func (storage *MemoryStorage[T]) RemoveExpired() int {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	now := storage.clock()
	removed := 0

	for key, data := range storage.items.Items() {
		item, ok := data.Object.(*memoryItem[T])
		if !ok || commons.IsExpired(item.expiresAt, now) {
			storage.removeLocked(key)
			removed++
		}
	}

	// keys whose items the janitor already dropped
	for _, key := range storage.recency.Keys() {
		if k, ok := key.(string); ok {
			if _, exist := storage.items.Get(k); !exist {
				storage.recency.Remove(k)
			}
		}
	}

	return removed
}

// RemoveAll removes all items
func (storage *MemoryStorage[T]) RemoveAll() {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	storage.recency.Purge()
	storage.items.Flush()
}

// GetTotalEntries returns the number of items
func (storage *MemoryStorage[T]) GetTotalEntries() int {
	storage.mutex.Lock()
	defer storage.mutex.Unlock()

	return storage.items.ItemCount()
}
