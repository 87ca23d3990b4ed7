package rest

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/present/rest/middleware"
	"github.com/totegamma/healthvault/internal/present/rest/presenter"
	"github.com/totegamma/healthvault/internal/usecase"
)

type KeyReleaseHandler struct {
	keys       *usecase.KeyReleaseUsecase
	authMw     *middleware.AuthMiddleware
	rateLimit  int
	rateWindow time.Duration
}

// NewKeyReleaseHandler builds the key-release surface. Each client IP may
// make limit requests per window; limit <= 0 disables the limiter.
func NewKeyReleaseHandler(keys *usecase.KeyReleaseUsecase, authMw *middleware.AuthMiddleware, limit int, window time.Duration) *KeyReleaseHandler {
	return &KeyReleaseHandler{
		keys:       keys,
		authMw:     authMw,
		rateLimit:  limit,
		rateWindow: window,
	}
}

func (h *KeyReleaseHandler) RegisterRoutes(e *echo.Echo) {
	mws := []echo.MiddlewareFunc{}
	if h.rateLimit > 0 && h.rateWindow > 0 {
		mws = append(mws, echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
			Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(h.rateLimit) / h.rateWindow.Seconds()),
				Burst:     h.rateLimit,
				ExpiresIn: h.rateWindow,
			}),
		}))
	}
	mws = append(mws, h.authMw.RequireIdentity)

	e.POST("/store-key", h.handleStoreKey, mws...)
	e.GET("/get-key/:patientAddress", h.handleGetKey, mws...)
}

type storeKeyRequest struct {
	PatientAddress string `json:"patientAddress"`
	Key            string `json:"key"`
}

func (h *KeyReleaseHandler) handleStoreKey(c echo.Context) error {
	ctx := c.Request().Context()

	var req storeKeyRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	patient, err := healthvault.ParseAddress(req.PatientAddress)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid patientAddress")
	}

	err = h.keys.StoreKey(ctx, identity(c), patient, req.Key)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return presenter.Forbidden(c, "not allowed to store a key for this address")
		}
		return presenter.Error(c, err)
	}

	return presenter.OK(c, echo.Map{"message": "key stored for " + patient.Hex()})
}

func (h *KeyReleaseHandler) handleGetKey(c echo.Context) error {
	ctx := c.Request().Context()

	patient, err := addressParam(c, "patientAddress")
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid patientAddress")
	}

	record, err := h.keys.FetchKey(ctx, identity(c), patient)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			return presenter.Forbidden(c, "not allowed to request the key for this address")
		}
		// ErrKeyNotFound renders as 404 key_not_found
		return presenter.Error(c, err)
	}

	return presenter.OK(c, echo.Map{"key": record.Key})
}
