package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/totegamma/healthvault/internal/domain"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

type mockPatientRepo struct {
	mu        sync.Mutex
	patients  map[common.Address]domain.Patient
	events    []domain.Event
	commitErr error
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: map[common.Address]domain.Patient{}}
}

func (m *mockPatientRepo) Get(ctx context.Context, address common.Address) (domain.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[address]
	if !ok {
		return domain.Patient{}, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *mockPatientRepo) Commit(ctx context.Context, patient domain.Patient, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.patients[patient.Address] = patient.Clone()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPatientRepo) Append(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPatientRepo) Events(ctx context.Context, patient common.Address) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.Patient == patient {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventKind, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

type mockKeyStore struct {
	mu   sync.Mutex
	keys map[common.Address]domain.KeyRecord
}

func newMockKeyStore() *mockKeyStore {
	return &mockKeyStore{keys: map[common.Address]domain.KeyRecord{}}
}

func (m *mockKeyStore) Put(ctx context.Context, record domain.KeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[record.Patient] = record
	return nil
}

func (m *mockKeyStore) Get(ctx context.Context, patient common.Address) (domain.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.keys[patient]
	if !ok {
		return domain.KeyRecord{}, domain.ErrKeyNotFound
	}
	return r, nil
}

type mockAuthorizer struct {
	allowed map[[2]common.Address]bool
	err     error
	calls   int
}

func (m *mockAuthorizer) IsProviderAuthorized(ctx context.Context, patient, provider common.Address) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.allowed[[2]common.Address{patient, provider}], nil
}

type mockBlobStore struct {
	blobs map[string][]byte
	err   error
}

func (m *mockBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	locator := fmt.Sprintf("loc-%d", len(m.blobs))
	m.blobs[locator] = append([]byte{}, data...)
	return locator, nil
}

func (m *mockBlobStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.blobs[locator]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return data, nil
}
