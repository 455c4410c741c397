package repository

import (
	"errors"
)

// ErrFragmentNotFound indicates the fragment does not exist or belongs to a
// different owner.
var ErrFragmentNotFound = errors.New("fragment not found")

// IsNotFound reports whether err is the store-level not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFragmentNotFound)
}
