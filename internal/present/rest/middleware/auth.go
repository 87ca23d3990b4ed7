package middleware

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/present/rest/presenter"
	"github.com/totegamma/healthvault/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// RequireIdentity rejects requests without a credential with 401 and
// requests with an invalid one with 403. The verified identity is put on the
// request context.
func (s *AuthMiddleware) RequireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.RequireIdentity")
		defer span.End()

		token := bearerToken(c)
		if token == "" {
			span.RecordError(domain.ErrUnauthenticated)
			return presenter.Unauthorized(c, "token not provided")
		}

		identity, err := s.auth.AuthJwt(ctx, token)
		if err != nil {
			span.RecordError(errors.Wrap(err, "AuthMiddleware.RequireIdentity: s.auth.AuthJwt failed"))
			return presenter.Forbidden(c, "invalid token")
		}

		ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, identity)
		span.SetAttributes(
			attribute.String("RequesterId", identity.Address.Hex()),
			attribute.String("RequesterRole", identity.Role),
		)

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireRole must run after RequireIdentity.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := Identity(c.Request().Context())
			if !ok || identity.Role != role {
				return presenter.Forbidden(c, "requires the "+role+" role")
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("authorization")
	if authHeader == "" {
		// browsers cannot set headers on a websocket handshake
		if websocket.IsWebSocketUpgrade(c.Request()) {
			return c.QueryParam("token")
		}
		return ""
	}

	// any scheme is read as "<scheme> <token>"; a non-bearer credential then
	// fails verification with 403
	split := strings.Fields(authHeader)
	if len(split) < 2 {
		return ""
	}
	return split[1]
}

// Identity returns the identity RequireIdentity attached to ctx.
func Identity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(domain.RequesterIdCtxKey).(domain.Identity)
	return identity, ok
}
