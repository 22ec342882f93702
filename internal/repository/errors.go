package repository

import (
	"errors"
	"fmt"
)

// ErrStoreFailure matches every error returned by a backend's Load or Save.
var ErrStoreFailure = errors.New("store failure")

// ErrCacheDirty is returned by CacheStore.Replace when the cache holds
// unsaved changes.
var ErrCacheDirty = errors.New("cache has unsaved changes")

// StoreError reports a failed backend operation.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

func storeErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Backend: backend, Op: op, Err: err}
}
