package transform

import (
	"github.com/cyverse/objcache/checksum"
)

// ChecksumFileTransformer verifies the content digest against an expected checksum before
// decoding. A mismatch is an IntegrityError and the bytes are never decoded.
type ChecksumFileTransformer[T any] struct {
	verifier *checksum.Verifier
	encode   EncodeFunc[T]
	decode   DecodeFunc[T]
}

// NewChecksumFileTransformer creates a new ChecksumFileTransformer. expectedChecksum is the
// hex MD5 digest of the encoded content, compared case-insensitively.
func NewChecksumFileTransformer[T any](expectedChecksum string, encode EncodeFunc[T], decode DecodeFunc[T]) *ChecksumFileTransformer[T] {
	return &ChecksumFileTransformer[T]{
		verifier: checksum.NewVerifier(expectedChecksum),
		encode:   encode,
		decode:   decode,
	}
}

// NewMemoryMappedFileTransformer creates a ChecksumFileTransformer that delegates to a BinaryTransformer
func NewMemoryMappedFileTransformer[T any](expectedChecksum string) *ChecksumFileTransformer[T] {
	binaryTransformer := NewBinaryTransformer[T]()
	return NewChecksumFileTransformer[T](expectedChecksum, binaryTransformer.Encode, binaryTransformer.Decode)
}

// GetExpectedChecksum returns the expected checksum
func (transformer *ChecksumFileTransformer[T]) GetExpectedChecksum() string {
	return transformer.verifier.GetExpected()
}

// Encode serializes the value
func (transformer *ChecksumFileTransformer[T]) Encode(value T) ([]byte, error) {
	data, err := transformer.encode(value)
	if err != nil {
		return nil, toSerializationError(err)
	}
	return data, nil
}

// Decode verifies and deserializes in-memory bytes
func (transformer *ChecksumFileTransformer[T]) Decode(data []byte) (T, error) {
	var zero T

	err := transformer.verifier.VerifyBytes(data)
	if err != nil {
		return zero, err
	}

	value, err := transformer.decode(data)
	if err != nil {
		return zero, toDeserializationError(err)
	}
	return value, nil
}

// DecodeFromLocation maps the file, verifies it and deserializes the verified bytes.
// The mapping is released before returning.
func (transformer *ChecksumFileTransformer[T]) DecodeFromLocation(path string) (T, error) {
	var value T

	err := checksum.LoadVerified(path, transformer.verifier, func(data []byte) error {
		decoded, decodeErr := transformer.decode(data)
		if decodeErr != nil {
			return toDeserializationError(decodeErr)
		}

		value = decoded
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return value, nil
}
