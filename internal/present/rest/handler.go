package rest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/present/rest/middleware"
	"github.com/totegamma/healthvault/internal/present/rest/presenter"
)

// Routes is a surface that can mount itself on an echo server.
type Routes interface {
	RegisterRoutes(e *echo.Echo)
}

func RegisterRoutes(e *echo.Echo, surfaces ...Routes) {
	e.GET("/health", func(c echo.Context) error {
		return presenter.OK(c, echo.Map{"status": "ok"})
	})
	for _, s := range surfaces {
		s.RegisterRoutes(e)
	}
}

func addressParam(c echo.Context, name string) (common.Address, error) {
	return healthvault.ParseAddress(c.Param(name))
}

func identity(c echo.Context) domain.Identity {
	// routes using this sit behind RequireIdentity
	id, _ := middleware.Identity(c.Request().Context())
	return id
}
