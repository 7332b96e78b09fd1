package grt

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned for list access past the bounds
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrKeyNotFound is returned for a missing dict key or unknown object member
	ErrKeyNotFound = errors.New("key not found")

	// ErrTypeMismatch is wrapped by TypeMismatchError
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnknownClass is returned when a metaclass is not registered
	ErrUnknownClass = errors.New("unknown class")

	// ErrDuplicateClass is returned when a metaclass is registered twice
	ErrDuplicateClass = errors.New("class already registered")

	// ErrDuplicateMember is returned when a class declares the same member twice
	ErrDuplicateMember = errors.New("member declared twice")

	// ErrReadOnly is returned when setting a read-only member
	ErrReadOnly = errors.New("member is read-only")

	// ErrInvalidSource is returned when copying an invalid value
	ErrInvalidSource = errors.New("invalid copy source")

	// ErrForeignValue is returned when a value from another document is stored
	ErrForeignValue = errors.New("value belongs to another document")

	// ErrDuplicateObject is returned when an object id is already in use
	ErrDuplicateObject = errors.New("object id already in use")

	// ErrAlreadyOwned is returned when an object held by an owning slot is
	// stored in another owning slot
	ErrAlreadyOwned = errors.New("object already has an owner")

	// ErrNonFinite is returned when a NaN or infinite real is stored
	ErrNonFinite = errors.New("real value must be finite")
)

// TypeMismatchError reports a value whose type disagrees with the declared type
type TypeMismatchError struct {
	Expected string
	Actual   string
}

// Error implements the error interface
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Unwrap makes errors.Is(err, ErrTypeMismatch) work
func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

func mismatch(expected SimpleTypeSpec, v Value) error {
	return &TypeMismatchError{Expected: expected.String(), Actual: describe(v)}
}

// describe returns the type description of a value for error messages
func describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "invalid"
	case *Object:
		return fmt.Sprintf("object(%s)", x.Class())
	default:
		return v.Type().String()
	}
}

// IsTypeMismatch returns true if the error is a type mismatch
func IsTypeMismatch(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm) || errors.Is(err, ErrTypeMismatch)
}

// IsNotFound returns true for missing keys, members and out of range indices
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrIndexOutOfRange)
}
