package transform

import (
	"reflect"

	"github.com/cyverse/objcache/commons"
)

// Transformer maps a typed value to bytes and back. One Transformer is bound to a store
// instance and reused for every entry, so implementations must be stateless or safe for
// concurrent use.
type Transformer[T any] interface {
	// Encode serializes the value
	Encode(value T) ([]byte, error)
	// Decode deserializes the value, it must not retain data after returning
	Decode(data []byte) (T, error)
}

// LocationDecoder is implemented by transformers that can load a value directly from a file
type LocationDecoder[T any] interface {
	DecodeFromLocation(path string) (T, error)
}

// Formatter is implemented by transformers whose encoding has a stable name.
// A store records the name and refuses to be reopened with a different encoding.
type Formatter interface {
	GetFormat() string
}

// EncodeFunc serializes a value
type EncodeFunc[T any] func(value T) ([]byte, error)

// DecodeFunc deserializes a value
type DecodeFunc[T any] func(data []byte) (T, error)

// FuncTransformer is a Transformer built from an encode/decode pair
type FuncTransformer[T any] struct {
	encode EncodeFunc[T]
	decode DecodeFunc[T]
}

// NewFuncTransformer creates a new FuncTransformer
func NewFuncTransformer[T any](encode EncodeFunc[T], decode DecodeFunc[T]) *FuncTransformer[T] {
	return &FuncTransformer[T]{
		encode: encode,
		decode: decode,
	}
}

// Encode serializes the value
func (transformer *FuncTransformer[T]) Encode(value T) ([]byte, error) {
	data, err := transformer.encode(value)
	if err != nil {
		return nil, toSerializationError(err)
	}
	return data, nil
}

// Decode deserializes the value
func (transformer *FuncTransformer[T]) Decode(data []byte) (T, error) {
	value, err := transformer.decode(data)
	if err != nil {
		var zero T
		return zero, toDeserializationError(err)
	}
	return value, nil
}

// RawBytesTransformer passes bytes through
type RawBytesTransformer struct{}

// NewRawBytesTransformer creates a new RawBytesTransformer
func NewRawBytesTransformer() *RawBytesTransformer {
	return &RawBytesTransformer{}
}

// Encode returns the value as is
func (transformer *RawBytesTransformer) Encode(value []byte) ([]byte, error) {
	if value == nil {
		return []byte{}, nil
	}
	return value, nil
}

// GetFormat returns the encoding name
func (transformer *RawBytesTransformer) GetFormat() string {
	return "raw"
}

// Decode returns a copy of data
func (transformer *RawBytesTransformer) Decode(data []byte) ([]byte, error) {
	value := make([]byte, len(data))
	copy(value, data)
	return value, nil
}

// GetFormatOf returns the encoding name of the transformer, empty if it has none
func GetFormatOf[T any](transformer Transformer[T]) string {
	if formatter, ok := any(transformer).(Formatter); ok {
		return formatter.GetFormat()
	}
	return ""
}

// TypeTag returns the name used to tag encoded values of type T
func TypeTag[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func toSerializationError(err error) error {
	if commons.IsSerializationError(err) {
		return err
	}
	return commons.NewSerializationError(err)
}

func toDeserializationError(err error) error {
	if commons.IsDeserializationError(err) || commons.IsIntegrityError(err) || commons.IsIOError(err) {
		return err
	}
	return commons.NewDeserializationError(err)
}
