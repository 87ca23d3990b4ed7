package usecase

import (
	"context"

	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/encryption"
	"github.com/totegamma/healthvault/internal/domain"
)

type ContentUsecase struct {
	store BlobStore
}

func NewContentUsecase(store BlobStore) *ContentUsecase {
	return &ContentUsecase{store: store}
}

func (uc *ContentUsecase) Put(ctx context.Context, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "Content.Usecase.Put")
	defer span.End()

	if len(data) == 0 {
		return "", errors.Wrap(domain.ErrInvalidArgument, "empty blob")
	}
	locator, err := uc.store.Put(ctx, data)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return locator, nil
}

func (uc *ContentUsecase) Get(ctx context.Context, locator string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Content.Usecase.Get")
	defer span.End()

	if locator == "" {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "empty locator")
	}
	data, err := uc.store.Get(ctx, locator)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return data, nil
}

// PutRecord stores the serialized record. Plaintext and keys never reach the store.
func (uc *ContentUsecase) PutRecord(ctx context.Context, record encryption.EncryptedRecord) (string, error) {
	data, err := record.Marshal()
	if err != nil {
		return "", err
	}
	return uc.Put(ctx, data)
}

func (uc *ContentUsecase) GetRecord(ctx context.Context, locator string) (encryption.EncryptedRecord, error) {
	data, err := uc.Get(ctx, locator)
	if err != nil {
		return encryption.EncryptedRecord{}, err
	}
	return encryption.Unmarshal(data)
}
