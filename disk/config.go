package disk

import (
	"os"
	"path/filepath"

	"github.com/cyverse/objcache/commons"
	"golang.org/x/xerrors"
)

// Config is the configuration of a single named disk store
type Config struct {
	Name             string
	RootPath         string
	Expiry           commons.Expiry
	MaxSize          int64 // 0 = unbounded
	ProtectionAtRest bool
	KeysAsFilenames  bool
	UseMemoryMap     bool
}

// NewConfig creates a Config for the named store under rootPath, never expiring and unbounded
func NewConfig(name string, rootPath string) *Config {
	return &Config{
		Name:     name,
		RootPath: rootPath,
		Expiry:   commons.NewExpiryNever(),
	}
}

// NewConfigFromCommons derives a store Config from the application config
func NewConfigFromCommons(config *commons.Config) (*Config, error) {
	rootPath, err := config.GetRootPath()
	if err != nil {
		return nil, xerrors.Errorf("failed to get root path: %w", err)
	}

	expiry, err := config.GetExpiry()
	if err != nil {
		return nil, xerrors.Errorf("failed to get expiry: %w", err)
	}

	return &Config{
		Name:             config.Name,
		RootPath:         rootPath,
		Expiry:           expiry,
		MaxSize:          config.MaxSize,
		ProtectionAtRest: config.ProtectionAtRest,
		KeysAsFilenames:  config.KeysAsFilenames,
		UseMemoryMap:     config.UseMemoryMap,
	}, nil
}

// GetStorePath returns the directory of the store
func (config *Config) GetStorePath() string {
	return filepath.Join(config.RootPath, config.Name)
}

// Validate validates the configuration
func (config *Config) Validate() error {
	if len(config.Name) == 0 {
		return xerrors.Errorf("store name must be given")
	}

	if config.Name == "." || config.Name == ".." || filepath.Base(config.Name) != config.Name {
		return xerrors.Errorf("store name %q must be a plain folder name", config.Name)
	}

	if len(config.RootPath) == 0 {
		return xerrors.Errorf("root path must be given")
	}

	if config.MaxSize < 0 {
		return xerrors.Errorf("max size must not be negative")
	}

	return nil
}

func (config *Config) fileMode() os.FileMode {
	if config.ProtectionAtRest {
		return 0o600
	}
	return 0o644
}

func (config *Config) dirMode() os.FileMode {
	if config.ProtectionAtRest {
		return 0o700
	}
	return 0o755
}
