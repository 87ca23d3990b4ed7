package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/totegamma/healthvault"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "healthvault-client/1.0"
	// tokens are reused for less than the server's default lifetime
	tokenCacheTTL = 50 * time.Minute
)

type Options struct {
	RegistryURL string
	KeyURL      string
	ContentURL  string
	Timeout     time.Duration
}

// Client talks to the registry, the key-release service and the content
// proxy. With a single-process deployment all three URLs are the same.
type Client struct {
	registry *resty.Client
	keys     *resty.Client
	content  *resty.Client
	tokens   *cache.Cache
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	build := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimSuffix(base, "/")).
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent)
	}
	return &Client{
		registry: build(opts.RegistryURL),
		keys:     build(opts.KeyURL),
		content:  build(opts.ContentURL),
		tokens:   cache.New(tokenCacheTTL, 2*tokenCacheTTL),
	}
}

// APIError is a non-2xx answer. It unwraps to the error named by its code, or
// to the one matching its status when the server sent no code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("healthvault: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if err, ok := codeErrors[e.Code]; ok {
		return err
	}
	return statusError(e.StatusCode)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	if resp.IsError() {
		var body struct {
			Error   string `json:"error"`
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		msg := resp.Status()
		if json.Unmarshal(resp.Body(), &body) == nil {
			if body.Error != "" {
				msg = body.Error
			} else if body.Message != "" {
				msg = body.Message
			}
		}
		return &APIError{StatusCode: resp.StatusCode(), Code: body.Code, Message: msg}
	}
	return nil
}

func decode(resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Submit posts a signed transaction to the registry and returns its id.
func (c *Client) Submit(ctx context.Context, st healthvault.SignedTransaction) (string, error) {
	resp, err := c.registry.R().SetContext(ctx).SetBody(st).Post("/tx")
	if err := check(resp, err); err != nil {
		return "", err
	}
	var out struct {
		TxID string `json:"txId"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

func submit[T any](ctx context.Context, c *Client, method string, args T, privatekey string) (string, error) {
	st, err := healthvault.SignTransaction(method, args, privatekey)
	if err != nil {
		return "", err
	}
	return c.Submit(ctx, st)
}

func (c *Client) RegisterPatient(ctx context.Context, privatekey string) (string, error) {
	return submit(ctx, c, healthvault.MethodRegisterPatient, healthvault.NoArgs{}, privatekey)
}

func (c *Client) UpdateHealthData(ctx context.Context, privatekey, pointer string) (string, error) {
	return submit(ctx, c, healthvault.MethodUpdateHealthData, healthvault.UpdateHealthDataArgs{Pointer: pointer}, privatekey)
}

func (c *Client) AuthorizeProvider(ctx context.Context, privatekey, provider string) (string, error) {
	return submit(ctx, c, healthvault.MethodAuthorizeProvider, healthvault.ProviderArgs{Provider: provider}, privatekey)
}

func (c *Client) RevokeProvider(ctx context.Context, privatekey, provider string) (string, error) {
	return submit(ctx, c, healthvault.MethodRevokeProvider, healthvault.ProviderArgs{Provider: provider}, privatekey)
}

func (c *Client) RequestDecryptionKey(ctx context.Context, privatekey, patient string) (string, error) {
	return submit(ctx, c, healthvault.MethodRequestDecryptionKey, healthvault.PatientArgs{Patient: patient}, privatekey)
}

// Login returns a bearer token for the key's address. Tokens are cached per
// key and role.
func (c *Client) Login(ctx context.Context, privatekey, role string) (string, error) {
	cacheKey := role + ":" + privatekey
	if x, found := c.tokens.Get(cacheKey); found {
		return x.(string), nil
	}

	st, err := healthvault.SignTransaction(healthvault.MethodLogin, healthvault.LoginArgs{Role: role}, privatekey)
	if err != nil {
		return "", err
	}
	resp, err := c.registry.R().SetContext(ctx).SetBody(st).Post("/auth/token")
	if err := check(resp, err); err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := decode(resp, &out); err != nil {
		return "", err
	}

	c.tokens.Set(cacheKey, out.Token, cache.DefaultExpiration)
	return out.Token, nil
}

func (c *Client) IsPatientRegistered(ctx context.Context, patient string) (bool, error) {
	resp, err := c.registry.R().SetContext(ctx).
		SetPathParam("address", patient).
		Get("/patients/{address}/registered")
	if err := check(resp, err); err != nil {
		return false, err
	}
	var out struct {
		Registered bool `json:"registered"`
	}
	err = decode(resp, &out)
	return out.Registered, err
}

func (c *Client) IsProviderAuthorized(ctx context.Context, patient, provider string) (bool, error) {
	resp, err := c.registry.R().SetContext(ctx).
		SetPathParams(map[string]string{"address": patient, "provider": provider}).
		Get("/patients/{address}/providers/{provider}")
	if err := check(resp, err); err != nil {
		return false, err
	}
	var out struct {
		Authorized bool `json:"authorized"`
	}
	err = decode(resp, &out)
	return out.Authorized, err
}

func (c *Client) GetHealthData(ctx context.Context, token, patient string) (string, error) {
	resp, err := c.registry.R().SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("address", patient).
		Get("/patients/{address}/data")
	if err := check(resp, err); err != nil {
		return "", err
	}
	var out struct {
		Pointer string `json:"pointer"`
	}
	err = decode(resp, &out)
	return out.Pointer, err
}

func (c *Client) Events(ctx context.Context, token, patient string) ([]healthvault.EventMessage, error) {
	resp, err := c.registry.R().SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("address", patient).
		Get("/patients/{address}/events")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	var out []healthvault.EventMessage
	err = decode(resp, &out)
	return out, err
}

func (c *Client) StoreKey(ctx context.Context, token, patient, key string) error {
	resp, err := c.keys.R().SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{"patientAddress": patient, "key": key}).
		Post("/store-key")
	return check(resp, err)
}

func (c *Client) GetKey(ctx context.Context, token, patient string) (string, error) {
	resp, err := c.keys.R().SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("patient", patient).
		Get("/get-key/{patient}")
	if err := check(resp, err); err != nil {
		return "", err
	}
	var out struct {
		Key string `json:"key"`
	}
	err = decode(resp, &out)
	return out.Key, err
}

func (c *Client) PutBlob(ctx context.Context, token string, data []byte) (string, error) {
	resp, err := c.content.R().SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(bytes.NewReader(data)).
		Post("/content")
	if err := check(resp, err); err != nil {
		return "", err
	}
	var out struct {
		Locator string `json:"locator"`
	}
	err = decode(resp, &out)
	return out.Locator, err
}

func (c *Client) GetBlob(ctx context.Context, locator string) ([]byte, error) {
	resp, err := c.content.R().SetContext(ctx).
		SetPathParam("locator", locator).
		Get("/content/{locator}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
