package rest

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/healthvault/internal/present/rest/middleware"
	"github.com/totegamma/healthvault/internal/present/rest/presenter"
	"github.com/totegamma/healthvault/internal/usecase"
)

const maxBlobSize = 16 << 20

// ContentHandler proxies the blob store. Blobs are ciphertext, so reads are
// public; writes need a bearer token.
type ContentHandler struct {
	content *usecase.ContentUsecase
	authMw  *middleware.AuthMiddleware
}

func NewContentHandler(content *usecase.ContentUsecase, authMw *middleware.AuthMiddleware) *ContentHandler {
	return &ContentHandler{content: content, authMw: authMw}
}

func (h *ContentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/content", h.handlePut, h.authMw.RequireIdentity)
	e.GET("/content/:locator", h.handleGet)
}

func (h *ContentHandler) handlePut(c echo.Context) error {
	ctx := c.Request().Context()

	body := http.MaxBytesReader(c.Response(), c.Request().Body, maxBlobSize)
	data, err := io.ReadAll(body)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	locator, err := h.content.Put(ctx, data)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"locator": locator})
}

func (h *ContentHandler) handleGet(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := h.content.Get(ctx, c.Param("locator"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return c.Blob(http.StatusOK, "application/octet-stream", data)
}
