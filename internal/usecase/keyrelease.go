package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/encryption"
	"github.com/totegamma/healthvault/internal/domain"
)

type KeyReleaseUsecase struct {
	store      KeyStore
	authorizer ProviderAuthorizer
	logger     *zap.Logger
	now        func() time.Time
}

// NewKeyReleaseUsecase builds the key release service. With a nil authorizer
// keys are released to the patient only; otherwise a caller holding the
// provider role is also served when the registry lists it for the patient.
func NewKeyReleaseUsecase(store KeyStore, authorizer ProviderAuthorizer, logger *zap.Logger) *KeyReleaseUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyReleaseUsecase{
		store:      store,
		authorizer: authorizer,
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *KeyReleaseUsecase) StoreKey(ctx context.Context, caller domain.Identity, patient common.Address, key string) error {
	ctx, span := tracer.Start(ctx, "KeyRelease.Usecase.StoreKey")
	defer span.End()

	if caller.Address != patient || caller.Role == healthvault.RoleService {
		return domain.ErrForbidden
	}
	if !encryption.ValidKey(key) {
		return errors.Wrap(domain.ErrInvalidArgument, "key must be 64 hex characters")
	}

	err := uc.store.Put(ctx, domain.KeyRecord{
		Patient:  patient,
		Key:      key,
		StoredAt: uc.now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "KeyReleaseUsecase: store.Put failed")
	}

	uc.logger.Info("key stored", zap.String("patient", patient.Hex()))
	return nil
}

func (uc *KeyReleaseUsecase) FetchKey(ctx context.Context, caller domain.Identity, patient common.Address) (domain.KeyRecord, error) {
	ctx, span := tracer.Start(ctx, "KeyRelease.Usecase.FetchKey")
	defer span.End()

	allowed, err := uc.mayFetch(ctx, caller, patient)
	if err != nil {
		span.RecordError(err)
		return domain.KeyRecord{}, err
	}
	if !allowed {
		return domain.KeyRecord{}, domain.ErrForbidden
	}

	record, err := uc.store.Get(ctx, patient)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.KeyRecord{}, domain.ErrKeyNotFound
		}
		span.RecordError(err)
		return domain.KeyRecord{}, errors.Wrap(err, "KeyReleaseUsecase: store.Get failed")
	}

	if caller.Address != patient {
		uc.logger.Info("key released to provider",
			zap.String("patient", patient.Hex()),
			zap.String("provider", caller.Address.Hex()),
		)
	}
	return record, nil
}

func (uc *KeyReleaseUsecase) mayFetch(ctx context.Context, caller domain.Identity, patient common.Address) (bool, error) {
	if caller.Role == healthvault.RoleService {
		return false, nil
	}
	if caller.Address == patient {
		return true, nil
	}
	if uc.authorizer == nil || caller.Role != healthvault.RoleProvider {
		return false, nil
	}
	ok, err := uc.authorizer.IsProviderAuthorized(ctx, patient, caller.Address)
	if err != nil {
		return false, errors.Wrap(err, "KeyReleaseUsecase: authorizer.IsProviderAuthorized failed")
	}
	return ok, nil
}
