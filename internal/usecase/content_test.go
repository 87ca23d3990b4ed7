package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/healthvault/encryption"
	"github.com/totegamma/healthvault/internal/domain"
)

func TestContentRecordRoundTrip(t *testing.T) {
	store := &mockBlobStore{blobs: map[string][]byte{}}
	uc := NewContentUsecase(store)
	ctx := context.Background()

	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	rec, err := encryption.Encrypt([]byte("Pressione 120/80"), key)
	require.NoError(t, err)

	locator, err := uc.PutRecord(ctx, rec)
	require.NoError(t, err)

	// the store holds ciphertext only
	assert.NotContains(t, string(store.blobs[locator]), "Pressione")
	assert.NotContains(t, string(store.blobs[locator]), key)

	back, err := uc.GetRecord(ctx, locator)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestContentErrors(t *testing.T) {
	store := &mockBlobStore{blobs: map[string][]byte{}}
	uc := NewContentUsecase(store)
	ctx := context.Background()

	_, err := uc.Put(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = uc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)

	store.err = errors.Join(domain.ErrStorageFailure, errors.New("quota exceeded"))
	_, err = uc.Put(ctx, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}
