package report

import (
	"errors"
	"fmt"
)

// ErrIO matches any *IOError
var ErrIO = errors.New("report i/o failure")

// IOError reports a report file that could not be created or written
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
