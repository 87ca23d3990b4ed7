package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/healthvault/internal/domain"
)

// PatientRepository is the registry ledger: patient state plus the append-only
// transaction log.
type PatientRepository interface {
	// Get returns domain.ErrNotFound when the address has never registered.
	Get(ctx context.Context, address common.Address) (domain.Patient, error)
	// Commit stores patient and appends event as one indivisible write.
	Commit(ctx context.Context, patient domain.Patient, event domain.Event) error
	// Append records an event that carries no state change.
	Append(ctx context.Context, event domain.Event) error
	Events(ctx context.Context, patient common.Address) ([]domain.Event, error)
}

// EventPublisher fans committed registry events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// KeyStore holds one active key per patient. Put overwrites.
type KeyStore interface {
	Put(ctx context.Context, record domain.KeyRecord) error
	// Get returns domain.ErrKeyNotFound when nothing has been stored.
	Get(ctx context.Context, patient common.Address) (domain.KeyRecord, error)
}

// ProviderAuthorizer answers the registry's isProviderAuthorized query.
type ProviderAuthorizer interface {
	IsProviderAuthorized(ctx context.Context, patient, provider common.Address) (bool, error)
}

// BlobStore is a content-addressable put/get service.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
}
