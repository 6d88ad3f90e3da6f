package disk

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// sortForEviction orders entries by eviction priority, first to go first.
// Least recently accessed wins, ties are broken by creation time, then by insertion order.
func sortForEviction(entries []*Entry) {
	sort.Slice(entries, func(i int, j int) bool {
		a := entries[i]
		b := entries[j]

		if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
			return a.LastAccessedAt.Before(b.LastAccessedAt)
		}

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		return a.Sequence < b.Sequence
	})
}

// removeExpiredLocked removes every expired entry and returns the count removed.
// store.mutex must be held.
func (store *Store[T]) removeExpiredLocked(now time.Time) int {
	removed := 0
	for key, entry := range store.entries {
		if !entry.IsExpired(now) {
			continue
		}

		store.removeEntryLocked(key, entry)
		store.metrics.IncreaseCounterForExpiration(1)
		removed++
	}

	return removed
}

// evictLocked brings the running total back under the size budget.
// store.mutex must be held.
func (store *Store[T]) evictLocked(now time.Time) {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "evictLocked",
	})

	if store.config.MaxSize <= 0 || store.totalSize <= store.config.MaxSize {
		return
	}

	expired := store.removeExpiredLocked(now)
	if expired > 0 {
		logger.Debugf("removed %d expired entries from store %s", expired, store.config.Name)
	}

	if store.totalSize <= store.config.MaxSize {
		return
	}

	candidates := make([]*Entry, 0, len(store.entries))
	for _, entry := range store.entries {
		candidates = append(candidates, entry)
	}

	sortForEviction(candidates)

	evicted := 0
	for _, entry := range candidates {
		if store.totalSize <= store.config.MaxSize {
			break
		}

		store.removeEntryLocked(entry.Key, entry)
		store.metrics.IncreaseCounterForEviction(1)
		evicted++
	}

	logger.Debugf("evicted %d entries from store %s, total size %d, max size %d", evicted, store.config.Name, store.totalSize, store.config.MaxSize)
}
