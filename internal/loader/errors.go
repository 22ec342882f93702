package loader

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

var (
	// ErrLoaderFailure matches every error returned by Adapted.
	ErrLoaderFailure = errors.New("loader failure")
	// ErrNotFound is returned by concrete loaders for an unknown identifier.
	ErrNotFound = fmt.Errorf("wire record %w", errdefs.ErrNotFound)
	// ErrIDMismatch is returned when a source answers a single-record
	// request with a different record.
	ErrIDMismatch = errors.New("loader: record id does not match request")
	// ErrUnsupported is returned by a Funcs loader missing a closure.
	ErrUnsupported = errors.New("loader: operation not supported")
)

// Error records which load failed. It unwraps to the loader's own error, so
// errors.Is and errors.As see the original failure unchanged.
type Error struct {
	Op  string
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("loader: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("loader: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrLoaderFailure) classify any loader error.
func (e *Error) Is(target error) bool {
	return target == ErrLoaderFailure
}

func wrap(op string, id any, err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	e := &Error{Op: op, Err: err}
	if id != nil && id != "" {
		e.ID = fmt.Sprint(id)
	}
	return e
}
