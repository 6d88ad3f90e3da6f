package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cyverse/objcache/checksum"
	"github.com/cyverse/objcache/commons"
	"github.com/cyverse/objcache/transform"
	"github.com/cyverse/objcache/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var (
	// ErrStoreReleased is returned by calls on a released store
	ErrStoreReleased error = xerrors.New("store is released")
	// ErrFormatMismatch is returned when a store holding entries is opened with a different encoding
	ErrFormatMismatch error = xerrors.New("store encoding mismatch")
)

// Store is a size-bounded persistent store of typed values, one file per key.
// The mutex guards the entries, the running total and the publish steps (rename into
// place and file deletion). Encoding, temp file writes, reads and decoding run unlocked.
type Store[T any] struct {
	config          *Config
	storePath       string
	transformer     transform.Transformer[T]
	locationDecoder transform.LocationDecoder[T]
	format          string
	clock           func() time.Time
	removalListener RemovalListener
	metrics         *commons.CacheMetrics

	entries   map[string]*Entry
	totalSize int64
	sequence  uint64
	dirty     bool
	released  bool
	mutex     sync.Mutex
}

// NewStore opens the store described by config, creating its directory if needed
func NewStore[T any](config *Config, transformer transform.Transformer[T], options ...Option) (*Store[T], error) {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"function": "NewStore",
	})

	if config == nil {
		return nil, xerrors.Errorf("store config must be given")
	}

	if transformer == nil {
		return nil, xerrors.Errorf("transformer must be given")
	}

	err := config.Validate()
	if err != nil {
		return nil, xerrors.Errorf("invalid store config: %w", err)
	}

	storePath := config.GetStorePath()
	err = os.MkdirAll(storePath, config.dirMode())
	if err != nil {
		return nil, commons.NewIOError(storePath, err)
	}

	if config.ProtectionAtRest {
		err = os.Chmod(storePath, config.dirMode())
		if err != nil {
			return nil, commons.NewIOError(storePath, err)
		}
	}

	storeOpts := newStoreOptions(options)

	store := &Store[T]{
		config:      config,
		storePath:   storePath,
		transformer:     transformer,
		format:          transform.GetFormatOf[T](transformer),
		clock:           storeOpts.clock,
		removalListener: storeOpts.removalListener,
		metrics:         &commons.CacheMetrics{},
		entries:         map[string]*Entry{},
	}

	if decoder, ok := any(transformer).(transform.LocationDecoder[T]); ok {
		store.locationDecoder = decoder
	}

	err = store.load()
	if err != nil {
		return nil, err
	}

	logger.Infof("opened store %s at %s, %d entries, %d bytes", config.Name, storePath, len(store.entries), store.totalSize)
	return store, nil
}

// load restores entries from the sidecar index and reconciles them with the directory
func (store *Store[T]) load() error {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "load",
	})

	idx, err := loadIndex(store.storePath)
	if err != nil {
		if commons.IsIOError(err) {
			return err
		}

		// a broken index loses the metadata, the files become orphans below
		logger.WithError(err).Warnf("discarding index of store %s", store.config.Name)
		idx = &index{Version: indexVersion}
		store.dirty = true
	}

	if idx.Format != store.format {
		if len(idx.Format) > 0 && len(store.format) > 0 && len(idx.Entries) > 0 {
			return xerrors.Errorf("store %s holds %s entries, opened as %s: %w", store.config.Name, idx.Format, store.format, ErrFormatMismatch)
		}
		store.dirty = true
	}

	store.sequence = idx.Sequence

	for _, record := range idx.Entries {
		if record == nil {
			continue
		}

		fileName, err := makeFileName(record.Key, store.config.KeysAsFilenames)
		if err != nil || fileName != record.FileName {
			logger.Debugf("dropping index record for key %s, file name %s does not match the naming scheme", record.Key, record.FileName)
			store.dirty = true
			continue
		}

		filePath := filepath.Join(store.storePath, fileName)
		stat, err := os.Stat(filePath)
		if err != nil || !stat.Mode().IsRegular() {
			logger.Debugf("dropping index record for key %s, file %s is missing", record.Key, filePath)
			store.dirty = true
			continue
		}

		entry := &Entry{
			Key:            record.Key,
			FilePath:       filePath,
			SizeBytes:      stat.Size(),
			CreatedAt:      record.CreatedAt,
			ExpiresAt:      record.ExpiresAt,
			LastAccessedAt: record.LastAccessedAt,
			Sequence:       record.Sequence,
		}

		if old, ok := store.entries[entry.Key]; ok {
			store.totalSize -= old.SizeBytes
		}

		store.entries[entry.Key] = entry
		store.totalSize += entry.SizeBytes

		if entry.Sequence > store.sequence {
			store.sequence = entry.Sequence
		}
	}

	dirEntries, err := os.ReadDir(store.storePath)
	if err != nil {
		return commons.NewIOError(store.storePath, err)
	}

	referenced := make(map[string]bool, len(store.entries))
	for _, entry := range store.entries {
		referenced[entry.fileName()] = true
	}

	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || name == indexFileName || referenced[name] {
			continue
		}

		// stray temp files and files written after the last index sync
		orphanPath := filepath.Join(store.storePath, name)
		logger.Debugf("removing orphan file %s", orphanPath)
		err = os.Remove(orphanPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.WithError(err).Warnf("failed to remove orphan file %s", orphanPath)
			store.metrics.IncreaseCounterForDeleteFailure(1)
		}
	}

	store.evictLocked(store.clock())
	return nil
}

// GetName returns the store name
func (store *Store[T]) GetName() string {
	return store.config.Name
}

// GetStorePath returns the store directory
func (store *Store[T]) GetStorePath() string {
	return store.storePath
}

// GetMaxSize returns the size budget, 0 = unbounded
func (store *Store[T]) GetMaxSize() int64 {
	return store.config.MaxSize
}

// GetDefaultExpiry returns the expiry applied by Put
func (store *Store[T]) GetDefaultExpiry() commons.Expiry {
	return store.config.Expiry
}

// GetMetrics returns the operation counters of the store
func (store *Store[T]) GetMetrics() *commons.CacheMetrics {
	return store.metrics
}

// Put stores the value with the default expiry
func (store *Store[T]) Put(key string, value T) (*Entry, error) {
	return store.PutWithExpiry(key, value, store.config.Expiry)
}

// PutWithExpiry stores the value, replacing any existing entry of the key
func (store *Store[T]) PutWithExpiry(key string, value T, expiry commons.Expiry) (*Entry, error) {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "PutWithExpiry",
	})

	if store.isReleased() {
		return nil, ErrStoreReleased
	}

	fileName, err := makeFileName(key, store.config.KeysAsFilenames)
	if err != nil {
		return nil, err
	}

	data, err := store.transformer.Encode(value)
	if err != nil {
		store.metrics.IncreaseCounterForSerializationFailure(1)
		if !commons.IsSerializationError(err) {
			err = commons.NewSerializationError(err)
		}
		return nil, err
	}

	tempPath, err := store.writeTempFile(data)
	if err != nil {
		store.metrics.IncreaseCounterForIOFailure(1)
		return nil, err
	}

	filePath := utils.JoinPath(store.storePath, fileName)
	size := int64(len(data))

	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		os.Remove(tempPath)
		return nil, ErrStoreReleased
	}

	err = os.Rename(tempPath, filePath)
	if err != nil {
		os.Remove(tempPath)
		store.metrics.IncreaseCounterForIOFailure(1)
		logger.WithError(err).Errorf("failed to publish %s", filePath)
		return nil, commons.NewIOError(filePath, err)
	}

	now := store.clock()
	expiresAt := expiry.Resolve(now)

	entry, ok := store.entries[key]
	if ok {
		store.totalSize -= entry.SizeBytes
		entry.SizeBytes = size
		entry.ExpiresAt = expiresAt
		entry.LastAccessedAt = now
	} else {
		store.sequence++
		entry = &Entry{
			Key:            key,
			FilePath:       filePath,
			SizeBytes:      size,
			CreatedAt:      now,
			ExpiresAt:      expiresAt,
			LastAccessedAt: now,
			Sequence:       store.sequence,
		}
		store.entries[key] = entry
	}

	store.totalSize += size
	store.dirty = true

	store.metrics.IncreaseCounterForPut(1)
	store.metrics.IncreaseBytesWritten(uint64(size))

	// the returned copy is taken before eviction, which may remove this entry too
	result := entry.clone()
	store.evictLocked(now)

	return result, nil
}

// writeTempFile writes data to a new temp file in the store directory
func (store *Store[T]) writeTempFile(data []byte) (string, error) {
	tempPath := filepath.Join(store.storePath, makeTempFileName())

	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, store.config.fileMode())
	if err != nil {
		return "", commons.NewIOError(tempPath, err)
	}

	_, err = file.Write(data)
	if err == nil {
		err = file.Sync()
	}

	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(tempPath)
		return "", commons.NewIOError(tempPath, err)
	}

	return tempPath, nil
}

// Get returns the value of the key
func (store *Store[T]) Get(key string) (T, error) {
	value, _, err := store.GetWithEntry(key)
	return value, err
}

// GetWithEntry returns the value of the key and a copy of its entry
func (store *Store[T]) GetWithEntry(key string) (T, *Entry, error) {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "GetWithEntry",
	})

	var zero T

	entry, err := store.touch(key)
	if err != nil {
		return zero, nil, err
	}

	value, err := store.decodeFile(entry.FilePath)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// removed after the lookup
			store.dropVanished(key)
			store.metrics.IncreaseCounterForMiss(1)
			return zero, nil, commons.NewNotFoundError(key)
		case commons.IsIntegrityError(err):
			store.metrics.IncreaseCounterForIntegrityFailure(1)
		case commons.IsIOError(err):
			store.metrics.IncreaseCounterForIOFailure(1)
		default:
			if !commons.IsDeserializationError(err) {
				err = commons.NewDeserializationError(err)
			}
		}

		logger.WithError(err).Warnf("failed to load key %s from %s", key, entry.FilePath)
		return zero, nil, err
	}

	store.metrics.IncreaseCounterForHit(1)
	store.metrics.IncreaseBytesRead(uint64(entry.SizeBytes))
	return value, entry, nil
}

// touch looks up the key and updates its access time. Expired entries are removed.
func (store *Store[T]) touch(key string) (*Entry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return nil, ErrStoreReleased
	}

	entry, ok := store.entries[key]
	if !ok {
		store.metrics.IncreaseCounterForMiss(1)
		return nil, commons.NewNotFoundError(key)
	}

	now := store.clock()
	if entry.IsExpired(now) {
		store.removeEntryLocked(key, entry)
		store.metrics.IncreaseCounterForExpiration(1)
		store.metrics.IncreaseCounterForMiss(1)
		return nil, commons.NewNotFoundError(key)
	}

	entry.LastAccessedAt = now
	store.dirty = true
	return entry.clone(), nil
}

func (store *Store[T]) decodeFile(filePath string) (T, error) {
	if store.locationDecoder != nil {
		return store.locationDecoder.DecodeFromLocation(filePath)
	}

	var value T
	err := checksum.ReadScoped(filePath, store.config.UseMemoryMap, func(data []byte) error {
		decoded, decodeErr := store.transformer.Decode(data)
		if decodeErr != nil {
			return decodeErr
		}

		value = decoded
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return value, nil
}

// dropVanished drops the entry of the key if its file no longer exists
func (store *Store[T]) dropVanished(key string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entry, ok := store.entries[key]
	if !ok {
		return
	}

	_, err := os.Stat(entry.FilePath)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		store.dropEntryLocked(key, entry)
	}
}

// GetEntry returns a copy of the entry of the key without updating its access time
func (store *Store[T]) GetEntry(key string) (*Entry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return nil, ErrStoreReleased
	}

	entry, ok := store.entries[key]
	if !ok || entry.IsExpired(store.clock()) {
		return nil, commons.NewNotFoundError(key)
	}

	return entry.clone(), nil
}

// HasEntry tells if a live entry of the key exists
func (store *Store[T]) HasEntry(key string) bool {
	_, err := store.GetEntry(key)
	return err == nil
}

// Remove deletes the entry of the key and its file, it is a no-op for absent keys
func (store *Store[T]) Remove(key string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return ErrStoreReleased
	}

	entry, ok := store.entries[key]
	if !ok {
		return nil
	}

	err := removeFile(entry.FilePath)
	if err != nil {
		store.metrics.IncreaseCounterForDeleteFailure(1)
		return commons.NewIOError(entry.FilePath, err)
	}

	delete(store.entries, key)
	store.totalSize -= entry.SizeBytes
	store.dirty = true
	store.metrics.IncreaseCounterForRemove(1)
	return nil
}

// removeEntryLocked deletes the file and drops the entry. The entry is dropped even if the
// file cannot be deleted, the leftover is logged and left to the orphan sweep of the next open.
// store.mutex must be held.
func (store *Store[T]) removeEntryLocked(key string, entry *Entry) {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "removeEntryLocked",
	})

	err := removeFile(entry.FilePath)
	if err != nil {
		logger.WithError(err).Warnf("failed to delete %s, dropping entry of key %s anyway", entry.FilePath, key)
		store.metrics.IncreaseCounterForDeleteFailure(1)
	}

	store.dropEntryLocked(key, entry)
}

// dropEntryLocked forgets the entry and notifies the removal listener.
// store.mutex must be held.
func (store *Store[T]) dropEntryLocked(key string, entry *Entry) {
	delete(store.entries, key)
	store.totalSize -= entry.SizeBytes
	store.dirty = true

	if store.removalListener != nil {
		store.removalListener(key)
	}
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveExpired removes every expired entry and returns the number removed
func (store *Store[T]) RemoveExpired() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return 0
	}

	return store.removeExpiredLocked(store.clock())
}

// RemoveAll deletes every file of the store and clears the index
func (store *Store[T]) RemoveAll() error {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "RemoveAll",
	})

	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return ErrStoreReleased
	}

	logger.Infof("deleting all entries of store %s", store.config.Name)

	store.entries = map[string]*Entry{}
	store.totalSize = 0
	store.dirty = false

	dirEntries, err := os.ReadDir(store.storePath)
	if err != nil {
		return commons.NewIOError(store.storePath, err)
	}

	var firstErr error
	for _, dirEntry := range dirEntries {
		// temp files belong to puts in flight
		if isTempFileName(dirEntry.Name()) {
			continue
		}

		path := filepath.Join(store.storePath, dirEntry.Name())
		err = os.RemoveAll(path)
		if err != nil {
			logger.WithError(err).Warnf("failed to delete %s", path)
			store.metrics.IncreaseCounterForDeleteFailure(1)
			if firstErr == nil {
				firstErr = commons.NewIOError(path, err)
			}
		}
	}

	return firstErr
}

// TotalSize returns the summed size of all live entries in bytes
func (store *Store[T]) TotalSize() int64 {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.totalSize
}

// GetTotalEntries returns the number of entries
func (store *Store[T]) GetTotalEntries() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return len(store.entries)
}

// GetEntryKeys returns the sorted keys of all entries
func (store *Store[T]) GetEntryKeys() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := make([]string, 0, len(store.entries))
	for key := range store.entries {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}

// Sync persists the sidecar index if it changed
func (store *Store[T]) Sync() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return ErrStoreReleased
	}

	return store.syncLocked()
}

func (store *Store[T]) syncLocked() error {
	if !store.dirty {
		return nil
	}

	idx := &index{
		Version:  indexVersion,
		Format:   store.format,
		Sequence: store.sequence,
		Entries:  make([]*indexRecord, 0, len(store.entries)),
	}

	for _, entry := range store.entries {
		idx.Entries = append(idx.Entries, newIndexRecord(entry))
	}

	sort.Slice(idx.Entries, func(i int, j int) bool {
		return idx.Entries[i].Sequence < idx.Entries[j].Sequence
	})

	err := saveIndex(store.storePath, idx, store.config.fileMode())
	if err != nil {
		store.metrics.IncreaseCounterForIOFailure(1)
		return err
	}

	store.dirty = false
	return nil
}

// Release syncs the index and stops accepting calls
func (store *Store[T]) Release() error {
	logger := log.WithFields(log.Fields{
		"package":  "disk",
		"struct":   "Store",
		"function": "Release",
	})

	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.released {
		return nil
	}

	logger.Infof("releasing store %s", store.config.Name)

	err := store.syncLocked()
	store.released = true
	return err
}

func (store *Store[T]) isReleased() bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.released
}
