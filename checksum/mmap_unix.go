//go:build unix

package checksum

import (
	"os"

	"github.com/cyverse/objcache/commons"
	"golang.org/x/sys/unix"
)

// MapFile maps the whole file read-only. Close must be called to unmap it.
func MapFile(path string) (*MappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, commons.NewIOError(path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, commons.NewIOError(path, err)
	}

	size := stat.Size()
	if size == 0 {
		// mmap rejects zero-length mappings
		return &MappedFile{path: path, data: []byte{}}, nil
	}

	if int64(int(size)) != size {
		return nil, commons.NewIOError(path, ErrFileTooLargeToMap)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, commons.NewIOError(path, err)
	}

	return &MappedFile{
		path:   path,
		data:   data,
		mapped: true,
	}, nil
}

func unmap(data []byte) error {
	return unix.Munmap(data)
}
