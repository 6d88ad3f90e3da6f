package commons

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cyverse/objcache/cache"
	"github.com/cyverse/objcache/commons"
	"github.com/cyverse/objcache/transform"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func SetCommonFlags(command *cobra.Command) {
	flags := command.PersistentFlags()

	flags.BoolP("version", "v", false, "Print version")
	flags.BoolP("debug", "d", false, "Enable debug mode")
	flags.BoolP("profile", "", false, "Enable profiling")

	flags.StringP("config", "", "", "Set config file (yaml)")
	flags.StringP("log", "", "", "Set log file path, - for stderr only")
	flags.StringP("name", "n", commons.StoreNameDefault, "Set store name")
	flags.StringP("dir", "", "", "Set cache root directory (default: user cache directory)")
	flags.StringP("max_size", "", humanize.Bytes(uint64(commons.DiskCacheSizeMaxDefault)), "Set max disk size, 0 for unbounded (e.g. 512MB, 20GB)")
	flags.StringP("expiry", "", "never", "Set default expiry (never, a duration such as 1h, or an RFC3339 date)")
	flags.BoolP("keys_as_filenames", "", false, "Use keys as file names instead of hashes")
	flags.BoolP("mmap", "", false, "Read entries with memory mapped io")
	flags.BoolP("compress", "", false, "Compress entries with zstd")
	flags.BoolP("protect", "", false, "Restrict entry files to the owner")

	flags.IntP("profile_port", "", commons.ProfileServicePortDefault, "Set profile service port")
	flags.IntP("prometheus_exporter_port", "", commons.PrometheusExporterPortDefault, "Set prometheus exporter port")
}

func getBoolFlag(command *cobra.Command, name string) bool {
	flag := command.Flags().Lookup(name)
	if flag == nil {
		return false
	}

	value, err := strconv.ParseBool(flag.Value.String())
	if err != nil {
		return false
	}
	return value
}

func getChangedFlag(command *cobra.Command, name string) (string, bool) {
	flag := command.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return "", false
	}
	return flag.Value.String(), true
}

// ProcessCommonFlags builds the config from the config file (or environment) and the flags.
// It returns false if the command should stop, e.g. after printing the version.
func ProcessCommonFlags(command *cobra.Command) (*commons.Config, io.WriteCloser, bool, error) {
	logger := log.WithFields(log.Fields{
		"package":  "commons",
		"function": "ProcessCommonFlags",
	})

	debug := getBoolFlag(command, "debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if getBoolFlag(command, "version") {
		PrintVersion(command)
		return nil, nil, false, nil // stop here
	}

	var config *commons.Config

	configPath, _ := getChangedFlag(command, "config")
	if len(configPath) > 0 {
		yamlBytes, err := os.ReadFile(configPath)
		if err != nil {
			logger.Error(err)
			return nil, nil, false, err // stop here
		}

		yamlConfig, err := commons.NewConfigFromYAML(yamlBytes)
		if err != nil {
			logger.Error(err)
			return nil, nil, false, err // stop here
		}

		config = yamlConfig
	} else {
		envConfig, err := commons.NewConfigFromENV()
		if err != nil {
			logger.Error(err)
			return nil, nil, false, err // stop here
		}

		config = envConfig
	}

	// prioritize command-line flag over config files
	if debug {
		config.Debug = true
	}

	if getBoolFlag(command, "profile") {
		config.Profile = true
	}

	if logPath, ok := getChangedFlag(command, "log"); ok {
		config.LogPath = logPath
	}

	if name, ok := getChangedFlag(command, "name"); ok {
		config.Name = name
	}

	if dir, ok := getChangedFlag(command, "dir"); ok {
		config.Directory = dir
	}

	if maxSize, ok := getChangedFlag(command, "max_size"); ok {
		size, err := humanize.ParseBytes(maxSize)
		if err != nil {
			logger.WithError(err).Errorf("failed to parse max size %q", maxSize)
			return nil, nil, false, err // stop here
		}
		config.MaxSize = int64(size)
	}

	if expiry, ok := getChangedFlag(command, "expiry"); ok {
		expiryConfig, err := parseExpiryConfig(expiry)
		if err != nil {
			logger.Error(err)
			return nil, nil, false, err // stop here
		}
		config.Expiry = expiryConfig
	}

	if _, ok := getChangedFlag(command, "keys_as_filenames"); ok {
		config.KeysAsFilenames = getBoolFlag(command, "keys_as_filenames")
	}

	if _, ok := getChangedFlag(command, "mmap"); ok {
		config.UseMemoryMap = getBoolFlag(command, "mmap")
	}

	if _, ok := getChangedFlag(command, "compress"); ok {
		config.Compression = getBoolFlag(command, "compress")
	}

	if _, ok := getChangedFlag(command, "protect"); ok {
		config.ProtectionAtRest = getBoolFlag(command, "protect")
	}

	if profilePort, ok := getChangedFlag(command, "profile_port"); ok {
		port, err := strconv.Atoi(profilePort)
		if err != nil {
			logger.WithError(err).Errorf("failed to convert input to int")
			return nil, nil, false, err // stop here
		}
		config.ProfileServicePort = port
	}

	if prometheusExporterPort, ok := getChangedFlag(command, "prometheus_exporter_port"); ok {
		port, err := strconv.Atoi(prometheusExporterPort)
		if err != nil {
			logger.WithError(err).Errorf("failed to convert input to int")
			return nil, nil, false, err // stop here
		}
		config.PrometheusExporterPort = port
	}

	err := config.Validate()
	if err != nil {
		logger.Error(err)
		return nil, nil, false, err // stop here
	}

	if config.Debug {
		log.SetLevel(log.DebugLevel)
	}

	var logWriter io.WriteCloser
	logFilePath := config.GetLogFilePath()
	if logFilePath == "-" || len(logFilePath) == 0 {
		log.SetOutput(os.Stderr)
	} else {
		logWriter = getLogWriter(logFilePath)

		// use multi output - to output to file and stderr
		mw := io.MultiWriter(os.Stderr, logWriter)
		log.SetOutput(mw)

		logger.Infof("Logging to %s", logFilePath)
	}

	return config, logWriter, true, nil // continue
}

// parseExpiryConfig converts a command-line expiry to its config form
func parseExpiryConfig(value string) (commons.ExpiryConfig, error) {
	expiry, err := commons.ParseExpiry(value)
	if err != nil {
		return commons.ExpiryConfig{}, err
	}

	return commons.NewExpiryConfig(expiry), nil
}

// OpenStorage opens the byte storage described by config
func OpenStorage(config *commons.Config) (*cache.Storage[[]byte], error) {
	var transformer transform.Transformer[[]byte] = transform.NewRawBytesTransformer()

	if config.Compression {
		compressed, err := transform.NewCompressedTransformer[[]byte](transformer)
		if err != nil {
			return nil, xerrors.Errorf("failed to create compressed transformer: %w", err)
		}
		transformer = compressed
	}

	return cache.NewStorage[[]byte](config, transformer)
}

func PrintVersion(command *cobra.Command) error {
	info, err := commons.GetVersionJSON()
	if err != nil {
		return err
	}

	fmt.Println(info)
	return nil
}

func PrintHelp(command *cobra.Command) error {
	return command.Usage()
}

func getLogWriter(logPath string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // 50MB
		MaxBackups: 5,
		MaxAge:     30, // 30 days
		Compress:   false,
	}
}
