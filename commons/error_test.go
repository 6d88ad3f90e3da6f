package commons

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

func TestErrorClassification(t *testing.T) {
	notFound := NewNotFoundError("key")
	assert.True(t, IsNotFoundError(notFound))
	assert.True(t, IsNotFoundError(xerrors.Errorf("lookup failed: %w", notFound)))
	assert.False(t, IsIOError(notFound))

	ioErr := NewIOError("/tmp/x", fs.ErrNotExist)
	assert.True(t, IsIOError(ioErr))
	assert.ErrorIs(t, ioErr, fs.ErrNotExist)
	assert.Contains(t, ioErr.Error(), "/tmp/x")

	serializationErr := NewSerializationError(errors.New("bad value"))
	assert.True(t, IsSerializationError(serializationErr))
	assert.False(t, IsDeserializationError(serializationErr))

	deserializationErr := NewDeserializationError(errors.New("bad bytes"))
	assert.True(t, IsDeserializationError(deserializationErr))
	assert.False(t, IsSerializationError(deserializationErr))

	integrityErr := NewIntegrityError("", "aa", "bb")
	assert.True(t, IsIntegrityError(integrityErr))
	assert.Equal(t, "checksum mismatch, expected aa, got bb", integrityErr.Error())

	var integrity *IntegrityError
	assert.True(t, errors.As(xerrors.Errorf("read: %w", integrityErr), &integrity))
	assert.Equal(t, "bb", integrity.Actual)

	invalidKeyErr := NewInvalidKeyError("..", "relative path element")
	assert.True(t, IsInvalidKeyError(invalidKeyErr))
	assert.False(t, IsNotFoundError(invalidKeyErr))
}
