package checksum

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyverse/objcache/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDigest(t *testing.T) {
	// well-known MD5 vectors
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Digest([]byte{}))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", Digest([]byte("abc")))

	data := []byte("the quick brown fox")
	assert.Equal(t, Digest(data), Digest(data))
	assert.Len(t, Digest(data), 32)
}

func TestDigestPathsAgree(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 5000)
	path := writeTestFile(t, data)

	fromFile, err := DigestFile(path)
	require.NoError(t, err)

	fromReader, err := DigestReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, Digest(data), fromFile)
	assert.Equal(t, Digest(data), fromReader)
}

func TestDigestFileEmpty(t *testing.T) {
	path := writeTestFile(t, []byte{})

	digest, err := DigestFile(path)
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte{}), digest)
}

func TestDigestFileMissing(t *testing.T) {
	_, err := DigestFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, commons.IsIOError(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReadScoped(t *testing.T) {
	data := []byte("scoped content")
	path := writeTestFile(t, data)

	for _, useMemoryMap := range []bool{true, false} {
		var seen []byte
		err := ReadScoped(path, useMemoryMap, func(content []byte) error {
			seen = append([]byte{}, content...)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, data, seen)
	}
}

func TestMappedFileCloseTwice(t *testing.T) {
	path := writeTestFile(t, []byte("mapped"))

	mappedFile, err := MapFile(path)
	if err != nil {
		require.ErrorIs(t, err, ErrMemoryMapUnsupported)
		t.Skip("memory mapping is not supported")
	}

	assert.Equal(t, []byte("mapped"), mappedFile.Bytes())
	assert.NoError(t, mappedFile.Close())
	assert.NoError(t, mappedFile.Close())
	assert.Nil(t, mappedFile.Bytes())
}

func TestVerifier(t *testing.T) {
	data := []byte("verified payload")
	digest := Digest(data)

	verifier := NewVerifier(strings.ToUpper(digest))
	assert.True(t, verifier.Matches(digest))
	assert.NoError(t, verifier.VerifyBytes(data))

	path := writeTestFile(t, data)
	assert.NoError(t, verifier.VerifyFile(path))

	err := verifier.VerifyBytes([]byte("tampered payload"))
	require.Error(t, err)
	assert.True(t, commons.IsIntegrityError(err))

	assert.False(t, NewVerifier("").Matches(digest))
	assert.True(t, commons.IsIntegrityError(NewVerifier("").VerifyBytes(data)))
}

func TestLoadVerifiedSingleByteMutation(t *testing.T) {
	data := bytes.Repeat([]byte("payload-"), 1024)
	verifier := NewVerifier(Digest(data))
	path := writeTestFile(t, data)

	called := false
	err := LoadVerified(path, verifier, func(content []byte) error {
		called = true
		assert.Equal(t, data, content)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	mutated := append([]byte{}, data...)
	mutated[len(mutated)/2] ^= 0x01
	require.NoError(t, os.WriteFile(path, mutated, 0o644))

	called = false
	err = LoadVerified(path, verifier, func(content []byte) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, commons.IsIntegrityError(err))
	assert.False(t, called)
}
