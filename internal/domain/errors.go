package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is matches any NotFoundError when the target names no resource, otherwise
// only the same resource.
func (e NotFoundError) Is(target error) bool {
	switch t := target.(type) {
	case NotFoundError:
		return t.Resource == "" || t.Resource == e.Resource
	case *NotFoundError:
		return t != nil && (t.Resource == "" || t.Resource == e.Resource)
	}
	return false
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

var (
	ErrKeyNotFound  = NotFoundError{Resource: "key"}
	ErrBlobNotFound = NotFoundError{Resource: "blob"}
)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("patient is already registered")
	ErrNotRegistered     = errors.New("patient is not registered")
	ErrAccessDenied      = errors.New("access denied")
	ErrAlreadyAuthorized = errors.New("provider is already authorized")
	ErrNotAuthorized     = errors.New("provider is not authorized")
)

// Key release errors.
var (
	ErrUnauthenticated = errors.New("missing or malformed credentials")
	ErrForbidden       = errors.New("forbidden")
)

var (
	ErrStorageFailure  = errors.New("content storage failure")
	ErrInvalidArgument = errors.New("invalid argument")
)
