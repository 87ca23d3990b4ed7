package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/internal/domain"
)

const defaultTimeout = 30 * time.Second

// KuboStore talks to an IPFS node over the Kubo RPC API.
type KuboStore struct {
	client *resty.Client
}

func NewKuboStore(apiURL string) *KuboStore {
	return &KuboStore{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(apiURL, "/")).
			SetTimeout(defaultTimeout),
	}
}

type kuboAddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

type kuboError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}

func (s *KuboStore) Put(ctx context.Context, data []byte) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"cid-version": "1",
			"raw-leaves":  "true",
			"pin":         "true",
		}).
		SetFileReader("file", "encrypted-data.json", bytes.NewReader(data)).
		Post("/api/v0/add")
	if err != nil {
		return "", errors.Wrapf(domain.ErrStorageFailure, "ipfs add: %v", err)
	}
	if resp.IsError() {
		return "", errors.Wrapf(domain.ErrStorageFailure, "ipfs add: %s", kuboMessage(resp))
	}

	var out kuboAddResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.Hash == "" {
		return "", errors.Wrapf(domain.ErrStorageFailure, "ipfs add: unexpected response %q", resp.String())
	}
	return out.Hash, nil
}

func (s *KuboStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if _, err := parseLocator(locator); err != nil {
		return nil, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("arg", locator).
		Post("/api/v0/cat")
	if err != nil {
		return nil, errors.Wrapf(domain.ErrStorageFailure, "ipfs cat: %v", err)
	}
	if resp.IsError() {
		msg := kuboMessage(resp)
		if resp.StatusCode() == http.StatusNotFound || strings.Contains(msg, "not found") {
			return nil, domain.ErrBlobNotFound
		}
		return nil, errors.Wrapf(domain.ErrStorageFailure, "ipfs cat: %s", msg)
	}
	return resp.Body(), nil
}

func kuboMessage(resp *resty.Response) string {
	var e kuboError
	if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Message != "" {
		return e.Message
	}
	return resp.Status()
}

// PinataStore pins blobs through the Pinata API and reads them back through
// an IPFS gateway.
type PinataStore struct {
	api       *resty.Client
	gateway   *resty.Client
	apiKey    string
	apiSecret string
}

const pinataAPI = "https://api.pinata.cloud"

func NewPinataStore(apiKey, apiSecret, gatewayURL string) *PinataStore {
	return newPinataStore(pinataAPI, apiKey, apiSecret, gatewayURL)
}

func newPinataStore(apiURL, apiKey, apiSecret, gatewayURL string) *PinataStore {
	return &PinataStore{
		api:       resty.New().SetBaseURL(apiURL).SetTimeout(defaultTimeout),
		gateway:   resty.New().SetBaseURL(strings.TrimSuffix(gatewayURL, "/")).SetTimeout(defaultTimeout),
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

type pinataPinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func (s *PinataStore) Put(ctx context.Context, data []byte) (string, error) {
	resp, err := s.api.R().
		SetContext(ctx).
		SetHeader("pinata_api_key", s.apiKey).
		SetHeader("pinata_secret_api_key", s.apiSecret).
		SetFileReader("file", "encrypted-data.json", bytes.NewReader(data)).
		Post("/pinning/pinFileToIPFS")
	if err != nil {
		return "", errors.Wrapf(domain.ErrStorageFailure, "pinata pin: %v", err)
	}
	if resp.IsError() {
		return "", errors.Wrapf(domain.ErrStorageFailure, "pinata pin: %s: %s", resp.Status(), resp.String())
	}

	var out pinataPinResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || out.IpfsHash == "" {
		return "", errors.Wrapf(domain.ErrStorageFailure, "pinata pin: unexpected response %q", resp.String())
	}
	return out.IpfsHash, nil
}

func (s *PinataStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if _, err := parseLocator(locator); err != nil {
		return nil, err
	}

	resp, err := s.gateway.R().
		SetContext(ctx).
		Get("/ipfs/" + locator)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrStorageFailure, "gateway get: %v", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, domain.ErrBlobNotFound
	}
	if resp.IsError() {
		return nil, errors.Wrapf(domain.ErrStorageFailure, "gateway get: %s", resp.Status())
	}
	return resp.Body(), nil
}
