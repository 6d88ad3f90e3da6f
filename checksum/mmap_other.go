//go:build !unix

package checksum

import (
	"github.com/cyverse/objcache/commons"
)

// MapFile is not supported on this platform, callers fall back to buffered reads
func MapFile(path string) (*MappedFile, error) {
	return nil, commons.NewIOError(path, ErrMemoryMapUnsupported)
}

func unmap(data []byte) error {
	return nil
}
