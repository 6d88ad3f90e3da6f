package commons

import "time"

const (
	StoreNameDefault              string        = "default"
	DiskCacheSizeMaxDefault       int64         = 1024 * 1024 * 1024 * 20 // 20GB
	DiskCacheRootDirName          string        = "objcache"
	MemoryCountLimitDefault       int           = 1024
	MemoryCleanupIntervalDefault  time.Duration = 5 * time.Minute
	SweepIntervalDefault          time.Duration = 10 * time.Minute
	ProfileServicePortDefault     int           = 12031
	PrometheusExporterPortDefault int           = 12032
)
