package navigation

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange matches any *OutOfRangeError
	ErrOutOfRange = errors.New("out of range")
	// ErrUnknownViewMode is returned for modes outside the documented set
	ErrUnknownViewMode = errors.New("unknown view mode")
	// ErrUnknownChannel is returned when zooming a channel outside the documented set
	ErrUnknownChannel = errors.New("unknown channel")
)

// OutOfRangeError describes a rejected navigation request
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s %g outside [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
