package commons

import (
	"errors"
	"fmt"
)

// NotFoundError contains cache entry not found error information
type NotFoundError struct {
	Key string
}

// NewNotFoundError creates an error for a missing or expired cache entry
func NewNotFoundError(key string) error {
	return &NotFoundError{
		Key: key,
	}
}

// Error returns error message
func (err *NotFoundError) Error() string {
	return fmt.Sprintf("cache entry '%s' not found", err.Key)
}

// Is tests type of error
func (err *NotFoundError) Is(other error) bool {
	_, ok := other.(*NotFoundError)
	return ok
}

// ToString stringifies the object
func (err *NotFoundError) ToString() string {
	return "<NotFoundError>"
}

// IsNotFoundError evaluates if the given error is not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, &NotFoundError{})
}

// IOError contains filesystem or memory-mapping error information
type IOError struct {
	Path string
	Err  error
}

// NewIOError creates an error for a filesystem or memory-mapping failure
func NewIOError(path string, err error) error {
	return &IOError{
		Path: path,
		Err:  err,
	}
}

// Error returns error message
func (err *IOError) Error() string {
	return fmt.Sprintf("io error on '%s': %v", err.Path, err.Err)
}

// Is tests type of error
func (err *IOError) Is(other error) bool {
	_, ok := other.(*IOError)
	return ok
}

// Unwrap returns the cause
func (err *IOError) Unwrap() error {
	return err.Err
}

// ToString stringifies the object
func (err *IOError) ToString() string {
	return "<IOError>"
}

// IsIOError evaluates if the given error is io error
func IsIOError(err error) bool {
	return errors.Is(err, &IOError{})
}

// SerializationError contains encode error information
type SerializationError struct {
	Err error
}

// NewSerializationError creates an error for an encode failure
func NewSerializationError(err error) error {
	return &SerializationError{
		Err: err,
	}
}

// Error returns error message
func (err *SerializationError) Error() string {
	return fmt.Sprintf("failed to serialize object: %v", err.Err)
}

// Is tests type of error
func (err *SerializationError) Is(other error) bool {
	_, ok := other.(*SerializationError)
	return ok
}

// Unwrap returns the cause
func (err *SerializationError) Unwrap() error {
	return err.Err
}

// ToString stringifies the object
func (err *SerializationError) ToString() string {
	return "<SerializationError>"
}

// IsSerializationError evaluates if the given error is serialization error
func IsSerializationError(err error) bool {
	return errors.Is(err, &SerializationError{})
}

// DeserializationError contains decode error information
type DeserializationError struct {
	Err error
}

// NewDeserializationError creates an error for a decode failure
func NewDeserializationError(err error) error {
	return &DeserializationError{
		Err: err,
	}
}

// Error returns error message
func (err *DeserializationError) Error() string {
	return fmt.Sprintf("failed to deserialize object: %v", err.Err)
}

// Is tests type of error
func (err *DeserializationError) Is(other error) bool {
	_, ok := other.(*DeserializationError)
	return ok
}

// Unwrap returns the cause
func (err *DeserializationError) Unwrap() error {
	return err.Err
}

// ToString stringifies the object
func (err *DeserializationError) ToString() string {
	return "<DeserializationError>"
}

// IsDeserializationError evaluates if the given error is deserialization error
func IsDeserializationError(err error) bool {
	return errors.Is(err, &DeserializationError{})
}

// IntegrityError contains checksum mismatch information
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

// NewIntegrityError creates an error for a checksum mismatch
func NewIntegrityError(path string, expected string, actual string) error {
	return &IntegrityError{
		Path:     path,
		Expected: expected,
		Actual:   actual,
	}
}

// Error returns error message
func (err *IntegrityError) Error() string {
	if len(err.Path) > 0 {
		return fmt.Sprintf("checksum mismatch for '%s', expected %s, got %s", err.Path, err.Expected, err.Actual)
	}
	return fmt.Sprintf("checksum mismatch, expected %s, got %s", err.Expected, err.Actual)
}

// Is tests type of error
func (err *IntegrityError) Is(other error) bool {
	_, ok := other.(*IntegrityError)
	return ok
}

// ToString stringifies the object
func (err *IntegrityError) ToString() string {
	return "<IntegrityError>"
}

// IsIntegrityError evaluates if the given error is integrity error
func IsIntegrityError(err error) bool {
	return errors.Is(err, &IntegrityError{})
}

// InvalidKeyError contains invalid key information
type InvalidKeyError struct {
	Key    string
	Reason string
}

// NewInvalidKeyError creates an error for a key that cannot be mapped to a filename
func NewInvalidKeyError(key string, reason string) error {
	return &InvalidKeyError{
		Key:    key,
		Reason: reason,
	}
}

// Error returns error message
func (err *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid cache key '%s': %s", err.Key, err.Reason)
}

// Is tests type of error
func (err *InvalidKeyError) Is(other error) bool {
	_, ok := other.(*InvalidKeyError)
	return ok
}

// ToString stringifies the object
func (err *InvalidKeyError) ToString() string {
	return "<InvalidKeyError>"
}

// IsInvalidKeyError evaluates if the given error is invalid key error
func IsInvalidKeyError(err error) bool {
	return errors.Is(err, &InvalidKeyError{})
}
