package transform

import (
	"github.com/cyverse/objcache/commons"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"
)

// CompressedTransformer compresses the output of another Transformer with zstd
type CompressedTransformer[T any] struct {
	inner   Transformer[T]
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressedTransformer creates a new CompressedTransformer around inner
func NewCompressedTransformer[T any](inner Transformer[T]) (*CompressedTransformer[T], error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, xerrors.Errorf("failed to create zstd decoder: %w", err)
	}

	return &CompressedTransformer[T]{
		inner:   inner,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Release releases the codec resources
func (transformer *CompressedTransformer[T]) Release() {
	if transformer.encoder != nil {
		transformer.encoder.Close()
		transformer.encoder = nil
	}

	if transformer.decoder != nil {
		transformer.decoder.Close()
		transformer.decoder = nil
	}
}

// GetFormat returns the encoding name, empty if the inner transformer has none
func (transformer *CompressedTransformer[T]) GetFormat() string {
	inner := GetFormatOf[T](transformer.inner)
	if len(inner) == 0 {
		return ""
	}
	return "zstd+" + inner
}

// Encode serializes and compresses the value
func (transformer *CompressedTransformer[T]) Encode(value T) ([]byte, error) {
	data, err := transformer.inner.Encode(value)
	if err != nil {
		return nil, toSerializationError(err)
	}

	return transformer.encoder.EncodeAll(data, nil), nil
}

// Decode decompresses and deserializes the value
func (transformer *CompressedTransformer[T]) Decode(data []byte) (T, error) {
	var zero T

	raw, err := transformer.decoder.DecodeAll(data, nil)
	if err != nil {
		return zero, commons.NewDeserializationError(xerrors.Errorf("failed to decompress: %w", err))
	}

	value, err := transformer.inner.Decode(raw)
	if err != nil {
		return zero, toDeserializationError(err)
	}
	return value, nil
}
