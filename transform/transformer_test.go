package transform

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyverse/objcache/checksum"
	"github.com/cyverse/objcache/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	FirstName string
	LastName  string
	Age       int
	Tags      []string
}

type testOther struct {
	FirstName string
}

func TestRawBytesTransformer(t *testing.T) {
	transformer := NewRawBytesTransformer()

	data, err := transformer.Encode([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), data)

	empty, err := transformer.Encode(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	source := []byte("source")
	decoded, err := transformer.Decode(source)
	require.NoError(t, err)
	assert.Equal(t, source, decoded)

	// decode must not alias the input
	source[0] = 'X'
	assert.Equal(t, []byte("source"), decoded)
}

func TestStructuredTransformer(t *testing.T) {
	transformer := NewStructuredTransformer[testUser]()
	user := testUser{FirstName: "John", LastName: "Snow", Age: 30, Tags: []string{"north"}}

	data, err := transformer.Encode(user)
	require.NoError(t, err)
	assert.Contains(t, string(data), TypeTag[testUser]())

	decoded, err := transformer.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, user, decoded)
}

func TestStructuredTransformerTypeMismatch(t *testing.T) {
	data, err := NewStructuredTransformer[testOther]().Encode(testOther{FirstName: "John"})
	require.NoError(t, err)

	_, err = NewStructuredTransformer[testUser]().Decode(data)
	require.Error(t, err)
	assert.True(t, commons.IsDeserializationError(err))

	_, err = NewStructuredTransformer[testUser]().Decode([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, commons.IsDeserializationError(err))
}

func TestStructuredTransformerSerializationError(t *testing.T) {
	transformer := NewStructuredTransformer[map[string]interface{}]()

	_, err := transformer.Encode(map[string]interface{}{"fn": func() {}})
	require.Error(t, err)
	assert.True(t, commons.IsSerializationError(err))
}

func TestBinaryTransformer(t *testing.T) {
	transformer := NewBinaryTransformer[testUser]()
	user := testUser{FirstName: "Arya", LastName: "Stark", Age: 18}

	data, err := transformer.Encode(user)
	require.NoError(t, err)

	decoded, err := transformer.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, user, decoded)

	_, err = transformer.Decode(data[:len(data)/2])
	require.Error(t, err)
	assert.True(t, commons.IsDeserializationError(err))
}

func TestFuncTransformer(t *testing.T) {
	transformer := NewFuncTransformer[string](
		func(value string) ([]byte, error) {
			if len(value) == 0 {
				return nil, errors.New("empty string")
			}
			return []byte(strings.ToUpper(value)), nil
		},
		func(data []byte) (string, error) {
			return strings.ToLower(string(data)), nil
		},
	)

	data, err := transformer.Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), data)

	value, err := transformer.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)

	_, err = transformer.Encode("")
	require.Error(t, err)
	assert.True(t, commons.IsSerializationError(err))
}

func writeEncoded(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "object")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestChecksumFileTransformer(t *testing.T) {
	user := testUser{FirstName: "Sansa", LastName: "Stark", Age: 20, Tags: []string{"winterfell"}}
	encoded, err := NewBinaryTransformer[testUser]().Encode(user)
	require.NoError(t, err)

	transformer := NewMemoryMappedFileTransformer[testUser](strings.ToUpper(checksum.Digest(encoded)) + "\n")
	assert.Equal(t, strings.ToUpper(checksum.Digest(encoded)), transformer.GetExpectedChecksum())

	data, err := transformer.Encode(user)
	require.NoError(t, err)
	assert.Equal(t, encoded, data)

	path := writeEncoded(t, data)

	fromLocation, err := transformer.DecodeFromLocation(path)
	require.NoError(t, err)
	assert.Equal(t, user, fromLocation)

	fromMemory, err := transformer.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, fromLocation, fromMemory)
}

func TestChecksumFileTransformerMutation(t *testing.T) {
	user := testUser{FirstName: "Bran", LastName: "Stark", Age: 10}
	encoded, err := NewBinaryTransformer[testUser]().Encode(user)
	require.NoError(t, err)

	transformer := NewMemoryMappedFileTransformer[testUser](checksum.Digest(encoded))
	path := writeEncoded(t, encoded)

	mutated := append([]byte{}, encoded...)
	mutated[len(mutated)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, mutated, 0o644))

	_, err = transformer.DecodeFromLocation(path)
	require.Error(t, err)
	assert.True(t, commons.IsIntegrityError(err))

	// both paths agree on the same bytes
	_, err = transformer.Decode(mutated)
	require.Error(t, err)
	assert.True(t, commons.IsIntegrityError(err))
}

func TestChecksumFileTransformerErrorKinds(t *testing.T) {
	garbage := []byte("verified but not decodable")
	transformer := NewMemoryMappedFileTransformer[testUser](checksum.Digest(garbage))

	_, err := transformer.DecodeFromLocation(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, commons.IsIOError(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, commons.IsIntegrityError(err))

	path := writeEncoded(t, garbage)
	_, err = transformer.DecodeFromLocation(path)
	require.Error(t, err)
	assert.True(t, commons.IsDeserializationError(err))
	assert.False(t, commons.IsIntegrityError(err))
}

func TestCompressedTransformer(t *testing.T) {
	transformer, err := NewCompressedTransformer[testUser](NewStructuredTransformer[testUser]())
	require.NoError(t, err)
	defer transformer.Release()

	user := testUser{FirstName: "Jon", LastName: strings.Repeat("Snow", 100), Age: 30}

	data, err := transformer.Encode(user)
	require.NoError(t, err)

	plain, err := NewStructuredTransformer[testUser]().Encode(user)
	require.NoError(t, err)
	assert.Less(t, len(data), len(plain))

	decoded, err := transformer.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, user, decoded)

	_, err = transformer.Decode([]byte("not zstd"))
	require.Error(t, err)
	assert.True(t, commons.IsDeserializationError(err))
}

func TestGetFormatOf(t *testing.T) {
	assert.Equal(t, "raw", GetFormatOf[[]byte](NewRawBytesTransformer()))
	assert.Equal(t, "json:transform.testUser", GetFormatOf[testUser](NewStructuredTransformer[testUser]()))
	assert.Equal(t, "gob:transform.testUser", GetFormatOf[testUser](NewBinaryTransformer[testUser]()))

	compressed, err := NewCompressedTransformer[[]byte](NewRawBytesTransformer())
	require.NoError(t, err)
	defer compressed.Release()
	assert.Equal(t, "zstd+raw", GetFormatOf[[]byte](compressed))

	// encodings without a name are not checked
	funcTransformer := NewFuncTransformer[string](
		func(value string) ([]byte, error) { return []byte(value), nil },
		func(data []byte) (string, error) { return string(data), nil },
	)
	assert.Equal(t, "", GetFormatOf[string](funcTransformer))

	compressedFunc, err := NewCompressedTransformer[string](funcTransformer)
	require.NoError(t, err)
	defer compressedFunc.Release()
	assert.Equal(t, "", GetFormatOf[string](compressedFunc))
}
