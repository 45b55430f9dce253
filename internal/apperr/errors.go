// Package apperr holds sentinel errors shared across transports.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrNotScanned = errors.New("vault not scanned yet")
	ErrInvalid    = errors.New("invalid argument")
)
