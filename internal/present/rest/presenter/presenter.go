package presenter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/encryption"
	"github.com/totegamma/healthvault/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	zap.L().Debug("bad request", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: healthvault.CodeInvalidArgument})
}

func BadRequestMessage(c echo.Context, msg string) error {
	zap.L().Debug("bad request", zap.String("path", c.Path()), zap.String("reason", msg))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: healthvault.CodeInvalidArgument})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg, Code: healthvault.CodeUnauthenticated})
}

func Forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg, Code: healthvault.CodeForbidden})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg, Code: healthvault.CodeNotFound})
}

func traceID(c echo.Context) zap.Field {
	return zap.String("trace_id", trace.SpanFromContext(c.Request().Context()).SpanContext().TraceID().String())
}

func InternalError(c echo.Context, err error) error {
	zap.L().Error("internal error", zap.String("path", c.Path()), traceID(c), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Code: healthvault.CodeInternal})
}

// Error renders err with the status its sentinel maps to.
func Error(c echo.Context, err error) error {
	status := Status(err)
	switch {
	case status >= http.StatusInternalServerError:
		zap.L().Error("request failed", zap.String("path", c.Path()), zap.Int("status", status), traceID(c), zap.Error(err))
		if status == http.StatusInternalServerError {
			return c.JSON(status, errorResponse{Error: "internal error", Code: healthvault.CodeInternal})
		}
	default:
		zap.L().Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, errorResponse{Error: err.Error(), Code: Code(err)})
}

// Code is the machine-readable name of err's sentinel.
func Code(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return healthvault.CodeInvalidArgument
	case errors.Is(err, encryption.ErrDecryption):
		return healthvault.CodeDecryption
	case errors.Is(err, domain.ErrUnauthenticated):
		return healthvault.CodeUnauthenticated
	case errors.Is(err, domain.ErrAccessDenied):
		return healthvault.CodeAccessDenied
	case errors.Is(err, domain.ErrForbidden):
		return healthvault.CodeForbidden
	case errors.Is(err, domain.ErrKeyNotFound):
		return healthvault.CodeKeyNotFound
	case errors.Is(err, domain.ErrBlobNotFound):
		return healthvault.CodeBlobNotFound
	case errors.Is(err, domain.ErrNotFound):
		return healthvault.CodeNotFound
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return healthvault.CodeAlreadyRegistered
	case errors.Is(err, domain.ErrNotRegistered):
		return healthvault.CodeNotRegistered
	case errors.Is(err, domain.ErrAlreadyAuthorized):
		return healthvault.CodeAlreadyAuthorized
	case errors.Is(err, domain.ErrNotAuthorized):
		return healthvault.CodeNotAuthorized
	case errors.Is(err, domain.ErrStorageFailure):
		return healthvault.CodeStorageFailure
	}
	return healthvault.CodeInternal
}

func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, encryption.ErrDecryption):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrAlreadyAuthorized),
		errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
