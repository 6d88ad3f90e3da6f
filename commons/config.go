package commons

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	irodsfs_common_utils "github.com/cyverse/irodsfs-common/utils"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/xid"
	yaml "gopkg.in/yaml.v2"
)

var (
	instanceID string
)

// getInstanceID returns instance ID
func getInstanceID() string {
	if len(instanceID) == 0 {
		instanceID = xid.New().String()
	}

	return instanceID
}

// GetDefaultDiskCacheRootPath returns default root path of disk stores
func GetDefaultDiskCacheRootPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil || len(cacheDir) == 0 {
		cacheDir = os.TempDir()
	}

	return filepath.Join(cacheDir, DiskCacheRootDirName)
}

// Config holds the parameters list which can be configured
type Config struct {
	Name             string       `envconfig:"OBJCACHE_NAME" yaml:"name"`
	Expiry           ExpiryConfig `ignored:"true" yaml:"expiry,omitempty"`
	MaxSize          int64        `envconfig:"OBJCACHE_MAX_SIZE" yaml:"max_size"`
	Directory        string       `envconfig:"OBJCACHE_DIRECTORY" yaml:"directory,omitempty"`
	ProtectionAtRest bool         `envconfig:"OBJCACHE_PROTECTION_AT_REST" yaml:"protection_at_rest,omitempty"`
	KeysAsFilenames  bool         `envconfig:"OBJCACHE_KEYS_AS_FILENAMES" yaml:"keys_as_filenames,omitempty"`
	UseMemoryMap     bool         `envconfig:"OBJCACHE_USE_MEMORY_MAP" yaml:"use_memory_map,omitempty"`
	Compression      bool         `envconfig:"OBJCACHE_COMPRESSION" yaml:"compression,omitempty"`

	MemoryCountLimit      int                           `envconfig:"OBJCACHE_MEMORY_COUNT_LIMIT" yaml:"memory_count_limit,omitempty"`
	MemoryCleanupInterval irodsfs_common_utils.Duration `ignored:"true" yaml:"memory_cleanup_interval,omitempty"`
	SweepInterval         irodsfs_common_utils.Duration `ignored:"true" yaml:"sweep_interval,omitempty"`

	LogPath string `envconfig:"OBJCACHE_LOG_PATH" yaml:"log_path,omitempty"`
	Debug   bool   `envconfig:"OBJCACHE_DEBUG" yaml:"debug,omitempty"`

	Profile                bool `ignored:"true" yaml:"profile,omitempty"`
	ProfileServicePort     int  `ignored:"true" yaml:"profile_service_port,omitempty"`
	PrometheusExporterPort int  `ignored:"true" yaml:"prometheus_exporter_port,omitempty"`

	InstanceID string `ignored:"true" yaml:"instanceid,omitempty"`
}

// NewDefaultConfig creates DefaultConfig
func NewDefaultConfig() *Config {
	return &Config{
		Name:             StoreNameDefault,
		Expiry:           ExpiryConfig{Type: ExpiryTypeNever},
		MaxSize:          DiskCacheSizeMaxDefault,
		Directory:        "",
		ProtectionAtRest: false,
		KeysAsFilenames:  false,
		UseMemoryMap:     false,
		Compression:      false,

		MemoryCountLimit:      MemoryCountLimitDefault,
		MemoryCleanupInterval: irodsfs_common_utils.Duration(MemoryCleanupIntervalDefault),
		SweepInterval:         irodsfs_common_utils.Duration(SweepIntervalDefault),

		LogPath: "",
		Debug:   false,

		Profile:                false,
		ProfileServicePort:     ProfileServicePortDefault,
		PrometheusExporterPort: PrometheusExporterPortDefault,

		InstanceID: getInstanceID(),
	}
}

// NewConfigFromYAML creates Config from YAML
func NewConfigFromYAML(yamlBytes []byte) (*Config, error) {
	config := NewDefaultConfig()

	err := yaml.Unmarshal(yamlBytes, config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML - %v", err)
	}

	return config, nil
}

// NewConfigFromENV creates Config from Environmental Variables
func NewConfigFromENV() (*Config, error) {
	config := NewDefaultConfig()

	err := envconfig.Process("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to read environmental variables - %v", err)
	}

	return config, nil
}

// GetLogFilePath returns log file path
func (config *Config) GetLogFilePath() string {
	return config.LogPath
}

// GetRootPath returns the root directory that holds all named stores
func (config *Config) GetRootPath() (string, error) {
	if len(config.Directory) == 0 {
		return GetDefaultDiskCacheRootPath(), nil
	}

	rootPath, err := homedir.Expand(config.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to expand directory %q - %v", config.Directory, err)
	}

	return filepath.Abs(rootPath)
}

// GetStorePath returns the directory of the named store
func (config *Config) GetStorePath() (string, error) {
	rootPath, err := config.GetRootPath()
	if err != nil {
		return "", err
	}

	return filepath.Join(rootPath, config.Name), nil
}

// GetExpiry returns the default expiry
func (config *Config) GetExpiry() (Expiry, error) {
	return config.Expiry.ToExpiry()
}

// GetMemoryCleanupInterval returns the memory tier cleanup interval
func (config *Config) GetMemoryCleanupInterval() time.Duration {
	if config.MemoryCleanupInterval <= 0 {
		return MemoryCleanupIntervalDefault
	}
	return time.Duration(config.MemoryCleanupInterval)
}

// GetSweepInterval returns the expiry sweep interval
func (config *Config) GetSweepInterval() time.Duration {
	if config.SweepInterval <= 0 {
		return SweepIntervalDefault
	}
	return time.Duration(config.SweepInterval)
}

// Validate validates configuration
func (config *Config) Validate() error {
	if len(config.Name) == 0 {
		return fmt.Errorf("store name must be given")
	}

	if config.Name == "." || config.Name == ".." || filepath.Base(config.Name) != config.Name {
		return fmt.Errorf("store name %q must be a plain folder name", config.Name)
	}

	if config.MaxSize < 0 {
		return fmt.Errorf("max size must not be negative")
	}

	if config.MemoryCountLimit < 0 {
		return fmt.Errorf("memory count limit must not be negative")
	}

	if _, err := config.Expiry.ToExpiry(); err != nil {
		return fmt.Errorf("invalid expiry - %v", err)
	}

	if config.Profile && config.ProfileServicePort <= 0 {
		return fmt.Errorf("profile service port must be given")
	}

	return nil
}
