package signal

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat matches any *UnsupportedFormatError
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnknownLayout means the column count matches no known export layout
	ErrUnknownLayout = errors.New("unknown column layout")
	// ErrInsufficientData means the source is too short to be a sleep recording
	ErrInsufficientData = errors.New("insufficient data")
)

// UnsupportedFormatError reports a source whose extension cannot be parsed
type UnsupportedFormatError struct {
	Source    string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q for %s (expected .csv or .txt)", e.Extension, e.Source)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}
