package transform

import (
	"bytes"
	"encoding/gob"

	"github.com/cyverse/objcache/commons"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/xerrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// typeWrapper tags an encoded value with its type so decode can validate type identity
type typeWrapper[T any] struct {
	Type   string `json:"type"`
	Object T      `json:"object"`
}

func checkTypeTag(stored string, expected string) error {
	if stored != expected {
		return commons.NewDeserializationError(xerrors.Errorf("type mismatch, stored %q, expected %q", stored, expected))
	}
	return nil
}

// StructuredTransformer encodes values as type-tagged JSON
type StructuredTransformer[T any] struct {
	typeTag string
}

// NewStructuredTransformer creates a new StructuredTransformer
func NewStructuredTransformer[T any]() *StructuredTransformer[T] {
	return &StructuredTransformer[T]{
		typeTag: TypeTag[T](),
	}
}

// GetFormat returns the encoding name
func (transformer *StructuredTransformer[T]) GetFormat() string {
	return "json:" + transformer.typeTag
}

// Encode serializes the value
func (transformer *StructuredTransformer[T]) Encode(value T) ([]byte, error) {
	wrapper := typeWrapper[T]{
		Type:   transformer.typeTag,
		Object: value,
	}

	data, err := json.Marshal(&wrapper)
	if err != nil {
		return nil, commons.NewSerializationError(err)
	}
	return data, nil
}

// Decode deserializes the value
func (transformer *StructuredTransformer[T]) Decode(data []byte) (T, error) {
	var zero T
	wrapper := typeWrapper[T]{}

	err := json.Unmarshal(data, &wrapper)
	if err != nil {
		return zero, commons.NewDeserializationError(err)
	}

	err = checkTypeTag(wrapper.Type, transformer.typeTag)
	if err != nil {
		return zero, err
	}

	return wrapper.Object, nil
}

// BinaryTransformer encodes values as type-tagged gob
type BinaryTransformer[T any] struct {
	typeTag string
}

// NewBinaryTransformer creates a new BinaryTransformer
func NewBinaryTransformer[T any]() *BinaryTransformer[T] {
	return &BinaryTransformer[T]{
		typeTag: TypeTag[T](),
	}
}

// GetFormat returns the encoding name
func (transformer *BinaryTransformer[T]) GetFormat() string {
	return "gob:" + transformer.typeTag
}

// Encode serializes the value
func (transformer *BinaryTransformer[T]) Encode(value T) ([]byte, error) {
	wrapper := typeWrapper[T]{
		Type:   transformer.typeTag,
		Object: value,
	}

	buffer := bytes.Buffer{}
	err := gob.NewEncoder(&buffer).Encode(&wrapper)
	if err != nil {
		return nil, commons.NewSerializationError(err)
	}
	return buffer.Bytes(), nil
}

// Decode deserializes the value
func (transformer *BinaryTransformer[T]) Decode(data []byte) (T, error) {
	var zero T
	wrapper := typeWrapper[T]{}

	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wrapper)
	if err != nil {
		return zero, commons.NewDeserializationError(err)
	}

	err = checkTypeTag(wrapper.Type, transformer.typeTag)
	if err != nil {
		return zero, err
	}

	return wrapper.Object, nil
}
