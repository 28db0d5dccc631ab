package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Error kinds
// --------------------------------------------------------------------------

// The four error kinds surfaced by dPack. Concrete errors are marked with one of
// these sentinels, so callers test them with errors.Is regardless of the context
// that was wrapped around them on the way up.
var (
	// ErrConfiguration is raised while building a serializer: invalid polymorphism
	// bindings, ambiguous collection shapes, missing constructors or recursive
	// shapes that cannot be forward declared.
	ErrConfiguration = errors.New("dpack: configuration error")

	// ErrFormat is raised while decoding when the wire token does not match what
	// the procedure expects (e.g. an array header where a map header is required).
	ErrFormat = errors.New("dpack: format error")

	// ErrTruncation is raised while decoding when the input ends before the
	// declared number of items (or bytes) has been read.
	ErrTruncation = errors.New("dpack: truncated input")

	// ErrUnknownExtension is raised when a polymorphic extension frame carries a
	// type code that has no binding in the active schema, or when a value of an
	// unbound runtime type is packed into a polymorphic slot.
	ErrUnknownExtension = errors.New("dpack: unknown extension type code")
)

// NewConfigurationError creates a new error marked as ErrConfiguration
func NewConfigurationError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// NewFormatError creates a new error marked as ErrFormat
func NewFormatError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrFormat)
}

// NewShortBufferError creates an error marked as ErrTruncation for a read that needed
// more bytes than the input holds. It carries no item index; collection unpackers
// convert it into a TruncationError for the item being decoded.
func NewShortBufferError(need, have int) error {
	return errors.Mark(errors.Newf("dpack: need %d bytes, %d left", need, have), ErrTruncation)
}

// --------------------------------------------------------------------------
// Typed errors
// --------------------------------------------------------------------------

// TruncationError reports that the input ended before item Index of a collection
// (or tuple, or object) that declared Count items.
type TruncationError struct {
	Index int
	Count int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("dpack: input ended at item %d of %d", e.Index, e.Count)
}

// Is makes TruncationError match ErrTruncation
func (e *TruncationError) Is(target error) bool {
	return target == ErrTruncation
}

// NewTruncationError creates a TruncationError for the given item index
func NewTruncationError(index, count int) error {
	return &TruncationError{Index: index, Count: count}
}

// UnknownExtensionError reports an extension type code without a binding.
type UnknownExtensionError struct {
	Code int8
	Slot string
}

func (e *UnknownExtensionError) Error() string {
	return fmt.Sprintf("dpack: extension type code %d is not bound for %s", e.Code, e.Slot)
}

// Is makes UnknownExtensionError match ErrUnknownExtension
func (e *UnknownExtensionError) Is(target error) bool {
	return target == ErrUnknownExtension
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// IsConfigurationError reports whether err is (or wraps) a configuration error
func IsConfigurationError(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsFormatError reports whether err is (or wraps) a format error
func IsFormatError(err error) bool { return errors.Is(err, ErrFormat) }

// IsTruncationError reports whether err is (or wraps) a truncation error
func IsTruncationError(err error) bool { return errors.Is(err, ErrTruncation) }

// IsUnknownExtensionError reports whether err is (or wraps) an unknown extension error
func IsUnknownExtensionError(err error) bool { return errors.Is(err, ErrUnknownExtension) }

// TruncatedAt converts a short-buffer error raised while decoding item index of a
// collection with count items into a TruncationError. An error that already is a
// TruncationError (raised by a nested collection) is kept, so the innermost
// position wins. Other errors pass through unchanged.
func TruncatedAt(err error, index, count int) error {
	if err == nil {
		return nil
	}
	var te *TruncationError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, ErrTruncation) {
		return errors.WithSecondaryError(NewTruncationError(index, count), err)
	}
	return err
}

// WrapSlot adds the name of the type position being resolved or built to err.
// The error kind of err is kept.
func WrapSlot(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s", fmt.Sprintf(format, args...))
}

// NewUnboundTypeError reports a value packed into a polymorphic position whose
// runtime type has no type code there. It is of the unknown extension kind.
func NewUnboundTypeError(typeName, slot string) error {
	return errors.Mark(errors.Newf("dpack: type %s has no type code in %s", typeName, slot), ErrUnknownExtension)
}
