// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed or incomplete input.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller does not own a private resource.
// Handlers map it to "not found" when existence must not leak.
var ErrUnauthorized = errors.New("unauthorized")
