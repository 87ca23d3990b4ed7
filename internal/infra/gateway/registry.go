package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/healthvault/internal/usecase"
)

var tracer = otel.Tracer("gateway")

const defaultTimeout = 3 * time.Second

// TokenSource returns a bearer token holding the service role.
type TokenSource func(ctx context.Context) (string, error)

// RegistryGateway asks a remote registry whether a provider may read a
// patient's data. It is used when the key-release service runs on its own.
type RegistryGateway struct {
	client *resty.Client
	token  TokenSource
}

func NewRegistryGateway(baseURL string, token TokenSource) *RegistryGateway {
	return &RegistryGateway{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		token: token,
	}
}

type authorizedResponse struct {
	Authorized bool `json:"authorized"`
}

func (g *RegistryGateway) IsProviderAuthorized(ctx context.Context, patient, provider common.Address) (bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Gateway.IsProviderAuthorized")
	defer span.End()

	token, err := g.token(ctx)
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, "RegistryGateway.IsProviderAuthorized: token failed")
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParams(map[string]string{
			"patient":  patient.Hex(),
			"provider": provider.Hex(),
		}).
		Get("/service/patients/{patient}/providers/{provider}")
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, "RegistryGateway.IsProviderAuthorized: request failed")
	}
	if resp.IsError() {
		err := errors.Errorf("RegistryGateway.IsProviderAuthorized: unexpected status %s", resp.Status())
		span.RecordError(err)
		return false, err
	}

	var out authorizedResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, "RegistryGateway.IsProviderAuthorized: decode failed")
	}
	return out.Authorized, nil
}

var _ usecase.ProviderAuthorizer = (*RegistryGateway)(nil)
