package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

func TestRegistryGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer service-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"token not provided"}`))
			return
		}
		switch r.URL.Path {
		case "/service/patients/" + alice.Hex() + "/providers/" + bob.Hex():
			w.Write([]byte(`{"authorized":true}`))
		case "/service/patients/" + alice.Hex() + "/providers/" + carol.Hex():
			w.Write([]byte(`{"authorized":false}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
		}
	}))
	defer srv.Close()

	g := NewRegistryGateway(srv.URL+"/", staticToken("service-token"))
	ctx := context.Background()

	ok, err := g.IsProviderAuthorized(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsProviderAuthorized(ctx, alice, carol)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.IsProviderAuthorized(ctx, bob, alice)
	assert.Error(t, err)

	// a wrong credential is never read as an answer
	_, err = NewRegistryGateway(srv.URL, staticToken("other")).IsProviderAuthorized(ctx, alice, bob)
	assert.Error(t, err)

	failing := func(context.Context) (string, error) { return "", errors.New("no secret") }
	_, err = NewRegistryGateway(srv.URL, failing).IsProviderAuthorized(ctx, alice, bob)
	assert.Error(t, err)
}

func staticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}
