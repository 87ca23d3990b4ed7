package client

import (
	"net/http"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/encryption"
	"github.com/totegamma/healthvault/internal/domain"
)

// Errors an APIError unwraps to. Match them with errors.Is.
var (
	ErrInvalidArgument   = domain.ErrInvalidArgument
	ErrUnauthenticated   = domain.ErrUnauthenticated
	ErrForbidden         = domain.ErrForbidden
	ErrAccessDenied      = domain.ErrAccessDenied
	ErrNotFound          = domain.ErrNotFound
	ErrKeyNotFound       = domain.ErrKeyNotFound
	ErrBlobNotFound      = domain.ErrBlobNotFound
	ErrAlreadyRegistered = domain.ErrAlreadyRegistered
	ErrNotRegistered     = domain.ErrNotRegistered
	ErrAlreadyAuthorized = domain.ErrAlreadyAuthorized
	ErrNotAuthorized     = domain.ErrNotAuthorized
	ErrStorageFailure    = domain.ErrStorageFailure
	ErrDecryption        = encryption.ErrDecryption
)

var codeErrors = map[string]error{
	healthvault.CodeInvalidArgument:   ErrInvalidArgument,
	healthvault.CodeDecryption:        ErrDecryption,
	healthvault.CodeUnauthenticated:   ErrUnauthenticated,
	healthvault.CodeForbidden:         ErrForbidden,
	healthvault.CodeAccessDenied:      ErrAccessDenied,
	healthvault.CodeNotFound:          ErrNotFound,
	healthvault.CodeKeyNotFound:       ErrKeyNotFound,
	healthvault.CodeBlobNotFound:      ErrBlobNotFound,
	healthvault.CodeAlreadyRegistered: ErrAlreadyRegistered,
	healthvault.CodeNotRegistered:     ErrNotRegistered,
	healthvault.CodeAlreadyAuthorized: ErrAlreadyAuthorized,
	healthvault.CodeNotAuthorized:     ErrNotAuthorized,
	healthvault.CodeStorageFailure:    ErrStorageFailure,
}

// statusError covers answers without a code, such as the rate limiter's.
func statusError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrInvalidArgument
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadGateway:
		return ErrStorageFailure
	}
	return nil
}
