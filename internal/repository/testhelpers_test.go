package repository

import "errors"

var errBoom = errors.New("boom")

func asStoreError(err error, target **StoreError) bool {
	return errors.As(err, target)
}
