package service

import (
	"sync"
	"time"

	irodsfs_common_utils "github.com/cyverse/irodsfs-common/utils"
	"github.com/cyverse/objcache/cache"
	"github.com/cyverse/objcache/commons"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// CacheService runs background maintenance of a cache storage
type CacheService struct {
	config        *commons.Config
	storage       *cache.Storage[[]byte]
	sweepInterval time.Duration
	sweep         func()
	terminateChan chan bool
	doneChan      chan bool
	started       bool
	terminated    bool
	mutex         sync.Mutex // for start and termination
}

// NewCacheService creates a new cache service
func NewCacheService(config *commons.Config, storage *cache.Storage[[]byte]) (*CacheService, error) {
	if config == nil {
		return nil, xerrors.Errorf("config must be given")
	}

	if storage == nil {
		return nil, xerrors.Errorf("storage must be given")
	}

	svc := &CacheService{
		config:        config,
		storage:       storage,
		sweepInterval: config.GetSweepInterval(),
		terminateChan: make(chan bool),
		doneChan:      make(chan bool),
	}
	svc.sweep = svc.Sweep
	return svc, nil
}

// GetStorage returns the cache storage
func (svc *CacheService) GetStorage() *cache.Storage[[]byte] {
	return svc.storage
}

// Start starts the sweep loop
func (svc *CacheService) Start() error {
	logger := log.WithFields(log.Fields{
		"package":  "service",
		"struct":   "CacheService",
		"function": "Start",
	})

	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	if svc.terminated {
		return xerrors.Errorf("service is already terminated")
	}

	if svc.started {
		return nil
	}

	svc.started = true

	logger.Infof("Starting the objcache service, sweeping every %s", svc.sweepInterval.String())

	go func() {
		logger := log.WithFields(log.Fields{
			"package": "service",
			"struct":  "CacheService",
		})

		defer irodsfs_common_utils.StackTraceFromPanic(logger)
		defer close(svc.doneChan)

		ticker := time.NewTicker(svc.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-svc.terminateChan:
				// terminate
				return
			case <-ticker.C:
				svc.sweep()
			}
		}
	}()

	return nil
}

// Sweep removes expired entries, persists the index and exports metrics
func (svc *CacheService) Sweep() {
	logger := log.WithFields(log.Fields{
		"package":  "service",
		"struct":   "CacheService",
		"function": "Sweep",
	})

	removed := svc.storage.RemoveExpired()

	err := svc.storage.Sync()
	if err != nil {
		logger.WithError(err).Warn("failed to sync cache index")
	}

	CollectPrometheusMetrics(svc.storage)

	logger.Infof("Removed %d expired entries, total %d entries, %d bytes", removed, svc.storage.GetTotalEntries(), svc.storage.TotalSize())
}

// Destroy stops the sweep loop and releases the storage
func (svc *CacheService) Destroy() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	if svc.terminated {
		// already terminated
		return
	}

	svc.terminated = true

	logger := log.WithFields(log.Fields{
		"package":  "service",
		"struct":   "CacheService",
		"function": "Destroy",
	})

	logger.Info("Destroying the objcache service")

	if svc.started {
		// the loop may already be gone after a panic, nobody would receive a send
		close(svc.terminateChan)
		<-svc.doneChan
	}

	err := svc.storage.Release()
	if err != nil {
		logger.WithError(err).Warn("failed to release cache storage")
	}
}
