package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyverse/objcache/commons"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/xid"
	"golang.org/x/xerrors"
)

const (
	indexFileName  string = ".objcache-index.json"
	tempFilePrefix string = ".tmp-"
	indexVersion   int    = 1
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// indexRecord is the persisted form of an Entry, file paths are kept relative to the store
type indexRecord struct {
	Key            string    `json:"key"`
	FileName       string    `json:"file_name"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Sequence       uint64    `json:"sequence"`
}

type index struct {
	Version  int            `json:"version"`
	Format   string         `json:"format,omitempty"`
	Sequence uint64         `json:"sequence"`
	Entries  []*indexRecord `json:"entries"`
}

func makeTempFileName() string {
	return tempFilePrefix + xid.New().String()
}

func isTempFileName(name string) bool {
	return strings.HasPrefix(name, tempFilePrefix)
}

// loadIndex reads the sidecar index, a missing index is an empty one
func loadIndex(storePath string) (*index, error) {
	indexPath := filepath.Join(storePath, indexFileName)

	data, err := os.ReadFile(indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &index{Version: indexVersion}, nil
		}
		return nil, commons.NewIOError(indexPath, err)
	}

	idx := index{}
	err = json.Unmarshal(data, &idx)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse index %q: %w", indexPath, err)
	}

	if idx.Version != indexVersion {
		return nil, xerrors.Errorf("unsupported index version %d", idx.Version)
	}

	return &idx, nil
}

// saveIndex writes the sidecar index to a temp file and renames it into place
func saveIndex(storePath string, idx *index, mode os.FileMode) error {
	indexPath := filepath.Join(storePath, indexFileName)
	tempPath := filepath.Join(storePath, makeTempFileName())

	data, err := json.Marshal(idx)
	if err != nil {
		return xerrors.Errorf("failed to marshal index: %w", err)
	}

	err = os.WriteFile(tempPath, data, mode)
	if err != nil {
		os.Remove(tempPath)
		return commons.NewIOError(tempPath, err)
	}

	err = os.Rename(tempPath, indexPath)
	if err != nil {
		os.Remove(tempPath)
		return commons.NewIOError(indexPath, err)
	}

	return nil
}

func newIndexRecord(entry *Entry) *indexRecord {
	return &indexRecord{
		Key:            entry.Key,
		FileName:       entry.fileName(),
		CreatedAt:      entry.CreatedAt,
		ExpiresAt:      entry.ExpiresAt,
		LastAccessedAt: entry.LastAccessedAt,
		Sequence:       entry.Sequence,
	}
}
