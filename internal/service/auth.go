package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/config"
	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/jwt"
)

var tracer = otel.Tracer("auth")

// login transactions older than this are refused
const loginWindow = 5 * time.Minute

type AuthService struct {
	secret string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(cfg config.Auth) *AuthService {
	ttl := config.Duration(cfg.TokenTTL)
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthService{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// AuthJwt verifies a bearer token and returns the identity it asserts.
// Every failure matches domain.ErrForbidden.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	_, claims, err := jwt.Validate(token, s.secret)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return domain.Identity{}, errors.Wrap(domain.ErrForbidden, err.Error())
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		err := fmt.Errorf("jwt issuer mismatch: expected %s, got %s", s.issuer, claims.Issuer)
		span.RecordError(err)
		return domain.Identity{}, errors.Wrap(domain.ErrForbidden, err.Error())
	}

	address, err := healthvault.ParseAddress(claims.Subject)
	if err != nil {
		span.RecordError(err)
		return domain.Identity{}, errors.Wrap(domain.ErrForbidden, "invalid subject")
	}

	role := claims.Role
	if role == "" {
		role = healthvault.RolePatient
	}

	span.SetAttributes(attribute.String("RequesterId", address.Hex()))
	return domain.Identity{Address: address, Role: role}, nil
}

// IssueToken exchanges a signed login transaction for a bearer token naming
// the recovered signer.
func (s *AuthService) IssueToken(ctx context.Context, st healthvault.SignedTransaction) (string, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.IssueToken")
	defer span.End()

	tx, signer, err := healthvault.OpenTransaction[healthvault.LoginArgs](st)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(domain.ErrForbidden, err.Error())
	}

	if tx.Method != healthvault.MethodLogin {
		return "", errors.Wrapf(domain.ErrInvalidArgument, "unexpected method %q", tx.Method)
	}

	now := s.now()
	if tx.SignedAt.Before(now.Add(-loginWindow)) || tx.SignedAt.After(now.Add(time.Minute)) {
		err := errors.Wrap(domain.ErrForbidden, "login transaction is stale")
		span.RecordError(err)
		return "", err
	}

	role := tx.Args.Role
	switch role {
	case "":
		role = healthvault.RolePatient
	case healthvault.RolePatient, healthvault.RoleProvider:
	default:
		return "", errors.Wrapf(domain.ErrInvalidArgument, "unsupported role %q", role)
	}

	return s.Issue(ctx, domain.Identity{Address: signer, Role: role})
}

// ServiceToken asserts the service role. It is how a standalone key-release
// service authenticates to the registry; both sides share the auth secret.
func (s *AuthService) ServiceToken(ctx context.Context) (string, error) {
	return s.Issue(ctx, domain.Identity{Role: healthvault.RoleService})
}

// Issue signs a token for id without any proof of possession. Callers must
// have verified id themselves.
func (s *AuthService) Issue(ctx context.Context, id domain.Identity) (string, error) {
	_, span := tracer.Start(ctx, "Auth.Service.Issue")
	defer span.End()

	now := s.now()
	token, err := jwt.Create(jwt.Claims{
		Issuer:         s.issuer,
		Subject:        id.Address.Hex(),
		Role:           id.Role,
		IssuedAt:       now.Unix(),
		ExpirationTime: now.Add(s.ttl).Unix(),
		JWTID:          uuid.NewString(),
	}, s.secret)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "AuthService.Issue: jwt.Create failed")
	}
	return token, nil
}
