package binary

import "fmt"

// Errors
var (
	ErrUnknownID         = &CodecError{"referent is not present in the dom"}
	ErrUnimplementedType = &CodecError{"value type has no binary codec"}
	ErrTypeMismatch      = &CodecError{"value type does not match property type"}
	ErrMalformedFile     = &CodecError{"malformed file"}
	ErrMalformedValue    = &CodecError{"malformed value"}
	ErrUnsupportedFormat = &CodecError{"unsupported file format"}
)

// CodecError represents a binary encoding or decoding error
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return "binary: " + e.Message
}

// PropertyError identifies the property column an encode or decode failure
// happened in.
type PropertyError struct {
	Class    string
	Property string
	Type     string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s.%s (%s): %v", e.Class, e.Property, e.Type, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedFile, fmt.Sprintf(format, args...))
}
