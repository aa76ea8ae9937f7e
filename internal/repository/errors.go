package repository

import "errors"

var (
	ErrOrderNotFound     = errors.New("repository: order not found")
	ErrReferenceNotFound = errors.New("repository: reference data not found")
	// ErrConcurrentUpdate means the order changed since it was loaded.
	ErrConcurrentUpdate = errors.New("repository: order was modified concurrently")
)
