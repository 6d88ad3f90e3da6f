package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/cyverse/objcache/commons"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	// BufferSize is the read buffer size used when memory mapping is not available
	BufferSize int = 16 * 1024 // 16KB
)

var (
	// ErrMemoryMapUnsupported is returned by MapFile on platforms without mmap
	ErrMemoryMapUnsupported error = xerrors.New("memory mapping is not supported on this platform")
	// ErrFileTooLargeToMap is returned by MapFile when the file does not fit in the address space
	ErrFileTooLargeToMap error = xerrors.New("file is too large to map")
)

// MappedFile is a read-only view of a whole file
type MappedFile struct {
	path   string
	data   []byte
	mapped bool
}

// Bytes returns the mapped content, valid until Close
func (file *MappedFile) Bytes() []byte {
	return file.data
}

// GetPath returns the path of the mapped file
func (file *MappedFile) GetPath() string {
	return file.path
}

// Close unmaps the file, it is safe to call it more than once
func (file *MappedFile) Close() error {
	if !file.mapped {
		file.data = nil
		return nil
	}

	data := file.data
	file.data = nil
	file.mapped = false

	if err := unmap(data); err != nil {
		return commons.NewIOError(file.path, err)
	}
	return nil
}

// Digest returns the lowercase hex MD5 digest of data
func Digest(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// DigestReader returns the lowercase hex MD5 digest of everything read from reader
func DigestReader(reader io.Reader) (string, error) {
	hasher := md5.New()
	buffer := make([]byte, BufferSize)

	_, err := io.CopyBuffer(hasher, reader, buffer)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DigestFile returns the digest of the file's full content
func DigestFile(path string) (string, error) {
	var digest string
	err := ReadScoped(path, true, func(data []byte) error {
		digest = Digest(data)
		return nil
	})
	if err == nil {
		return digest, nil
	}

	if !errors.Is(err, ErrMemoryMapUnsupported) {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", commons.NewIOError(path, err)
	}
	defer file.Close()

	digest, err = DigestReader(file)
	if err != nil {
		return "", commons.NewIOError(path, err)
	}
	return digest, nil
}

// ReadScoped hands the whole content of the file to fn. The bytes are only valid while fn runs.
// With useMemoryMap the file is mapped and unmapped on return; if mapping is not supported
// it falls back to a buffered read.
func ReadScoped(path string, useMemoryMap bool, fn func(data []byte) error) error {
	logger := log.WithFields(log.Fields{
		"package":  "checksum",
		"function": "ReadScoped",
	})

	if useMemoryMap {
		mappedFile, err := MapFile(path)
		if err == nil {
			defer func() {
				if closeErr := mappedFile.Close(); closeErr != nil {
					logger.WithError(closeErr).Warnf("failed to unmap %s", path)
				}
			}()

			return fn(mappedFile.Bytes())
		}

		if !errors.Is(err, ErrMemoryMapUnsupported) {
			return err
		}

		logger.Debugf("memory mapping is unavailable, reading %s with buffered io", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return commons.NewIOError(path, err)
	}

	return fn(data)
}

// Verifier compares digests against an expected checksum, fail-closed
type Verifier struct {
	expected string
}

// NewVerifier creates a new Verifier for the expected hex checksum
func NewVerifier(expected string) *Verifier {
	return &Verifier{
		expected: strings.TrimSpace(expected),
	}
}

// GetExpected returns the expected checksum
func (verifier *Verifier) GetExpected() string {
	return verifier.expected
}

// Matches compares case-insensitively, an empty checksum never matches
func (verifier *Verifier) Matches(actual string) bool {
	if len(verifier.expected) == 0 || len(actual) == 0 {
		return false
	}
	return strings.EqualFold(verifier.expected, actual)
}

// VerifyBytes verifies an in-memory byte sequence
func (verifier *Verifier) VerifyBytes(data []byte) error {
	return verifier.verify("", Digest(data))
}

// VerifyMapped verifies bytes read from path
func (verifier *Verifier) VerifyMapped(path string, data []byte) error {
	return verifier.verify(path, Digest(data))
}

// VerifyFile verifies the full content of a file
func (verifier *Verifier) VerifyFile(path string) error {
	actual, err := DigestFile(path)
	if err != nil {
		return err
	}
	return verifier.verify(path, actual)
}

func (verifier *Verifier) verify(path string, actual string) error {
	if !verifier.Matches(actual) {
		return commons.NewIntegrityError(path, verifier.expected, actual)
	}
	return nil
}

// LoadVerified maps the file, verifies it and hands the verified bytes to fn.
// fn is never called with bytes that failed verification.
func LoadVerified(path string, verifier *Verifier, fn func(data []byte) error) error {
	return ReadScoped(path, true, func(data []byte) error {
		err := verifier.VerifyMapped(path, data)
		if err != nil {
			return err
		}
		return fn(data)
	})
}
