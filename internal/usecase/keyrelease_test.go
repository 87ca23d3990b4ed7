package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/domain"
)

var testKey = strings.Repeat("ab", 32)

func TestFetchKeyPatientOnly(t *testing.T) {
	uc := NewKeyReleaseUsecase(newMockKeyStore(), nil, nil)
	ctx := context.Background()
	patient := domain.Identity{Address: alice, Role: healthvault.RolePatient}
	provider := domain.Identity{Address: bob, Role: healthvault.RoleProvider}

	_, err := uc.FetchKey(ctx, patient, alice)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, uc.StoreKey(ctx, patient, alice, testKey))

	rec, err := uc.FetchKey(ctx, patient, alice)
	require.NoError(t, err)
	assert.Equal(t, testKey, rec.Key)
	assert.Equal(t, alice, rec.Patient)

	_, err = uc.FetchKey(ctx, provider, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestStoreKeyForbiddenForOthers(t *testing.T) {
	store := newMockKeyStore()
	uc := NewKeyReleaseUsecase(store, nil, nil)

	err := uc.StoreKey(context.Background(), domain.Identity{Address: bob}, alice, testKey)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, store.keys)
}

func TestStoreKeyOverwrites(t *testing.T) {
	uc := NewKeyReleaseUsecase(newMockKeyStore(), nil, nil)
	ctx := context.Background()
	patient := domain.Identity{Address: alice}

	require.NoError(t, uc.StoreKey(ctx, patient, alice, testKey))
	second := strings.Repeat("cd", 32)
	require.NoError(t, uc.StoreKey(ctx, patient, alice, second))

	rec, err := uc.FetchKey(ctx, patient, alice)
	require.NoError(t, err)
	assert.Equal(t, second, rec.Key)
}

func TestStoreKeyValidatesKey(t *testing.T) {
	uc := NewKeyReleaseUsecase(newMockKeyStore(), nil, nil)
	err := uc.StoreKey(context.Background(), domain.Identity{Address: alice}, alice, "short")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFetchKeyConsultsRegistry(t *testing.T) {
	auth := &mockAuthorizer{allowed: map[[2]common.Address]bool{}}
	auth.allowed[[2]common.Address{alice, bob}] = true
	uc := NewKeyReleaseUsecase(newMockKeyStore(), auth, nil)
	ctx := context.Background()

	require.NoError(t, uc.StoreKey(ctx, domain.Identity{Address: alice}, alice, testKey))

	rec, err := uc.FetchKey(ctx, domain.Identity{Address: bob, Role: healthvault.RoleProvider}, alice)
	require.NoError(t, err)
	assert.Equal(t, testKey, rec.Key)

	_, err = uc.FetchKey(ctx, domain.Identity{Address: carol, Role: healthvault.RoleProvider}, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// the provider role is required even when the registry lists the address
	calls := auth.calls
	_, err = uc.FetchKey(ctx, domain.Identity{Address: bob, Role: healthvault.RolePatient}, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, calls, auth.calls)
}

func TestFetchKeyForbiddenBeforeNotFound(t *testing.T) {
	auth := &mockAuthorizer{allowed: map[[2]common.Address]bool{}}
	uc := NewKeyReleaseUsecase(newMockKeyStore(), auth, nil)

	_, err := uc.FetchKey(context.Background(), domain.Identity{Address: bob, Role: healthvault.RoleProvider}, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestFetchKeyAuthorizerFailure(t *testing.T) {
	auth := &mockAuthorizer{err: errors.New("registry unreachable")}
	uc := NewKeyReleaseUsecase(newMockKeyStore(), auth, nil)

	_, err := uc.FetchKey(context.Background(), domain.Identity{Address: bob, Role: healthvault.RoleProvider}, alice)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}

func TestServiceRoleHoldsNoKeys(t *testing.T) {
	store := newMockKeyStore()
	uc := NewKeyReleaseUsecase(store, allowAll{}, nil)
	ctx := context.Background()
	svc := domain.Identity{Role: healthvault.RoleService}

	err := uc.StoreKey(ctx, svc, common.Address{}, testKey)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, store.keys)

	require.NoError(t, uc.StoreKey(ctx, domain.Identity{Address: alice, Role: healthvault.RolePatient}, alice, testKey))
	_, err = uc.FetchKey(ctx, svc, alice)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

type allowAll struct{}

func (allowAll) IsProviderAuthorized(context.Context, common.Address, common.Address) (bool, error) {
	return true, nil
}
