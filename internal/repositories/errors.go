// Package repositories holds the storage errors shared by every repository
// implementation.
package repositories

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)
