package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/totegamma/healthvault/internal/domain"
)

var tracer = otel.Tracer("usecase")

type RegistryOptions struct {
	// StrictMembership rejects authorizing a provider twice and revoking a
	// provider that is not in the set.
	StrictMembership bool
}

type RegistryUsecase struct {
	repo      PatientRepository
	publisher EventPublisher
	logger    *zap.Logger
	opts      RegistryOptions
	locks     stripedLock
	now       func() time.Time
}

func NewRegistryUsecase(repo PatientRepository, publisher EventPublisher, logger *zap.Logger, opts RegistryOptions) *RegistryUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryUsecase{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

func (uc *RegistryUsecase) load(ctx context.Context, address common.Address) (domain.Patient, error) {
	patient, err := uc.repo.Get(ctx, address)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewPatient(address), nil
	}
	if err != nil {
		return domain.Patient{}, errors.Wrap(err, "RegistryUsecase: repo.Get failed")
	}
	return patient, nil
}

// mutate runs fn on a copy of the caller's record while holding the record
// lock, then commits the copy together with the event fn produced. Nothing is
// written when fn fails.
func (uc *RegistryUsecase) mutate(ctx context.Context, address common.Address, fn func(p *domain.Patient) (domain.Event, error)) (domain.Event, error) {
	unlock := uc.locks.Lock(address)
	defer unlock()

	current, err := uc.load(ctx, address)
	if err != nil {
		return domain.Event{}, err
	}

	next := current.Clone()
	event, err := fn(&next)
	if err != nil {
		return domain.Event{}, err
	}

	now := uc.now().UTC()
	next.UpdatedAt = now
	event.TxID = uuid.NewString()
	event.Patient = address
	event.Timestamp = now

	err = uc.repo.Commit(ctx, next, event)
	if err != nil {
		return domain.Event{}, errors.Wrap(err, "RegistryUsecase: repo.Commit failed")
	}

	uc.publish(ctx, event)
	return event, nil
}

func (uc *RegistryUsecase) publish(ctx context.Context, event domain.Event) {
	if uc.publisher == nil {
		return
	}
	// the event is already in the log; a lost notification is not a failed tx
	err := uc.publisher.Publish(ctx, event)
	if err != nil {
		uc.logger.Warn("failed to publish registry event",
			zap.String("txId", event.TxID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
	}
}

func (uc *RegistryUsecase) RegisterPatient(ctx context.Context, caller common.Address) (domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.RegisterPatient")
	defer span.End()

	event, err := uc.mutate(ctx, caller, func(p *domain.Patient) (domain.Event, error) {
		if p.Registered {
			return domain.Event{}, domain.ErrAlreadyRegistered
		}
		p.Registered = true
		return domain.Event{Kind: domain.EventPatientRegistered}, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return event, err
}

func (uc *RegistryUsecase) UpdateHealthData(ctx context.Context, caller common.Address, pointer string) (domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.UpdateHealthData")
	defer span.End()

	event, err := uc.mutate(ctx, caller, func(p *domain.Patient) (domain.Event, error) {
		if !p.Registered {
			return domain.Event{}, domain.ErrNotRegistered
		}
		if pointer == "" {
			return domain.Event{}, errors.Wrap(domain.ErrInvalidArgument, "empty data pointer")
		}
		p.DataPointer = pointer
		return domain.Event{Kind: domain.EventDataUpdated, Pointer: pointer}, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return event, err
}

func (uc *RegistryUsecase) AuthorizeProvider(ctx context.Context, caller, provider common.Address) (domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.AuthorizeProvider")
	defer span.End()

	event, err := uc.mutate(ctx, caller, func(p *domain.Patient) (domain.Event, error) {
		if !p.Registered {
			return domain.Event{}, domain.ErrNotRegistered
		}
		if provider == (common.Address{}) || provider == caller {
			return domain.Event{}, errors.Wrap(domain.ErrInvalidArgument, "provider must be another non-zero address")
		}
		if uc.opts.StrictMembership && p.IsAuthorized(provider) {
			return domain.Event{}, domain.ErrAlreadyAuthorized
		}
		p.AuthorizedProviders[provider] = struct{}{}
		return domain.Event{Kind: domain.EventProviderAuthorized, Provider: provider}, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return event, err
}

func (uc *RegistryUsecase) RevokeProvider(ctx context.Context, caller, provider common.Address) (domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.RevokeProvider")
	defer span.End()

	event, err := uc.mutate(ctx, caller, func(p *domain.Patient) (domain.Event, error) {
		if !p.Registered {
			return domain.Event{}, domain.ErrNotRegistered
		}
		if uc.opts.StrictMembership && !p.IsAuthorized(provider) {
			return domain.Event{}, domain.ErrNotAuthorized
		}
		delete(p.AuthorizedProviders, provider)
		return domain.Event{Kind: domain.EventProviderRevoked, Provider: provider}, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return event, err
}

func (uc *RegistryUsecase) GetHealthData(ctx context.Context, caller, patient common.Address) (string, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.GetHealthData")
	defer span.End()

	record, err := uc.load(ctx, patient)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if !record.CanRead(caller) {
		return "", domain.ErrAccessDenied
	}
	return record.DataPointer, nil
}

// RequestDecryptionKey only signals intent: it logs KeyRequested and moves no
// key material.
func (uc *RegistryUsecase) RequestDecryptionKey(ctx context.Context, caller, patient common.Address) (domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.RequestDecryptionKey")
	defer span.End()

	unlock := uc.locks.Lock(patient)
	defer unlock()

	record, err := uc.load(ctx, patient)
	if err != nil {
		span.RecordError(err)
		return domain.Event{}, err
	}
	if !record.CanRead(caller) {
		return domain.Event{}, domain.ErrAccessDenied
	}

	event := domain.Event{
		TxID:      uuid.NewString(),
		Kind:      domain.EventKeyRequested,
		Patient:   patient,
		Requester: caller,
		Timestamp: uc.now().UTC(),
	}
	err = uc.repo.Append(ctx, event)
	if err != nil {
		span.RecordError(err)
		return domain.Event{}, errors.Wrap(err, "RegistryUsecase: repo.Append failed")
	}

	uc.publish(ctx, event)
	return event, nil
}

func (uc *RegistryUsecase) IsPatientRegistered(ctx context.Context, address common.Address) bool {
	record, err := uc.load(ctx, address)
	if err != nil {
		uc.logger.Error("registration lookup failed", zap.String("patient", address.Hex()), zap.Error(err))
		return false
	}
	return record.Registered
}

func (uc *RegistryUsecase) IsProviderAuthorized(ctx context.Context, patient, provider common.Address) bool {
	ok, err := uc.CheckProviderAuthorized(ctx, patient, provider)
	if err != nil {
		uc.logger.Error("authorization lookup failed",
			zap.String("patient", patient.Hex()),
			zap.String("provider", provider.Hex()),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// CheckProviderAuthorized is IsProviderAuthorized with storage errors surfaced.
// It satisfies ProviderAuthorizer.
func (uc *RegistryUsecase) CheckProviderAuthorized(ctx context.Context, patient, provider common.Address) (bool, error) {
	record, err := uc.load(ctx, patient)
	if err != nil {
		return false, err
	}
	return record.IsAuthorized(provider), nil
}

// Events returns the patient's slice of the transaction log. Only the
// patient may read it.
func (uc *RegistryUsecase) Events(ctx context.Context, caller, patient common.Address) ([]domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Events")
	defer span.End()

	if caller != patient {
		return nil, domain.ErrAccessDenied
	}
	events, err := uc.repo.Events(ctx, patient)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "RegistryUsecase: repo.Events failed")
	}
	return events, nil
}

// Authorizer exposes the registry as an in-process ProviderAuthorizer.
func (uc *RegistryUsecase) Authorizer() ProviderAuthorizer {
	return registryAuthorizer{uc}
}

type registryAuthorizer struct {
	uc *RegistryUsecase
}

func (a registryAuthorizer) IsProviderAuthorized(ctx context.Context, patient, provider common.Address) (bool, error) {
	return a.uc.CheckProviderAuthorized(ctx, patient, provider)
}
