package repository

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/healthvault/internal/domain"
)

// MemoryPatientRepository is the registry ledger for a single process.
type MemoryPatientRepository struct {
	mu       sync.RWMutex
	patients map[common.Address]domain.Patient
	log      []domain.Event
}

func NewMemoryPatientRepository() *MemoryPatientRepository {
	return &MemoryPatientRepository{
		patients: map[common.Address]domain.Patient{},
	}
}

func (r *MemoryPatientRepository) Get(ctx context.Context, address common.Address) (domain.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patient, ok := r.patients[address]
	if !ok {
		return domain.Patient{}, domain.ErrNotFound
	}
	return patient.Clone(), nil
}

func (r *MemoryPatientRepository) Commit(ctx context.Context, patient domain.Patient, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.patients[patient.Address] = patient.Clone()
	r.log = append(r.log, event)
	return nil
}

func (r *MemoryPatientRepository) Append(ctx context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = append(r.log, event)
	return nil
}

func (r *MemoryPatientRepository) Events(ctx context.Context, patient common.Address) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Event
	for _, e := range r.log {
		if e.Patient == patient {
			out = append(out, e)
		}
	}
	return out, nil
}
