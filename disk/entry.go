package disk

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cyverse/objcache/commons"
	"github.com/cyverse/objcache/utils"
)

const (
	maxFilenameLength int = 255
)

// Entry is the metadata of a live cache entry
type Entry struct {
	Key            string
	FilePath       string
	SizeBytes      int64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	// Sequence is the insertion order within the store, kept across overwrites
	Sequence uint64
}

// IsExpired tells if the entry has expired at now
func (entry *Entry) IsExpired(now time.Time) bool {
	return commons.IsExpired(entry.ExpiresAt, now)
}

// IsNeverExpire tells if the entry never expires
func (entry *Entry) IsNeverExpire() bool {
	return !entry.ExpiresAt.Before(commons.NeverExpireTime)
}

func (entry *Entry) clone() *Entry {
	copied := *entry
	return &copied
}

func (entry *Entry) fileName() string {
	return filepath.Base(entry.FilePath)
}

// makeFileName maps a key to its file name in the store directory
func makeFileName(key string, keysAsFilenames bool) (string, error) {
	if !keysAsFilenames {
		return utils.MakeHash(key), nil
	}

	if len(key) == 0 {
		return "", commons.NewInvalidKeyError(key, "empty key")
	}

	if key == "." || key == ".." {
		return "", commons.NewInvalidKeyError(key, "relative path element")
	}

	// dot files are reserved for the index and temp files
	if strings.HasPrefix(key, ".") {
		return "", commons.NewInvalidKeyError(key, "leading dot")
	}

	if strings.ContainsAny(key, "/\\\x00") {
		return "", commons.NewInvalidKeyError(key, "contains a path separator or NUL")
	}

	if len(key) > maxFilenameLength {
		return "", commons.NewInvalidKeyError(key, "too long for a file name")
	}

	return key, nil
}
