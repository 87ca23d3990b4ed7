package domain

import (
	"bytes"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Patient is a registry record. It is created on registration and never deleted.
type Patient struct {
	Address             common.Address
	Registered          bool
	DataPointer         string
	AuthorizedProviders map[common.Address]struct{}
	UpdatedAt           time.Time
}

func NewPatient(address common.Address) Patient {
	return Patient{
		Address:             address,
		AuthorizedProviders: map[common.Address]struct{}{},
	}
}

func (p Patient) IsAuthorized(provider common.Address) bool {
	_, ok := p.AuthorizedProviders[provider]
	return ok
}

// CanRead reports whether caller may read this record's pointer.
func (p Patient) CanRead(caller common.Address) bool {
	return caller == p.Address || p.IsAuthorized(caller)
}

// Clone returns a copy that shares no state with p.
func (p Patient) Clone() Patient {
	c := p
	c.AuthorizedProviders = make(map[common.Address]struct{}, len(p.AuthorizedProviders))
	for k := range p.AuthorizedProviders {
		c.AuthorizedProviders[k] = struct{}{}
	}
	return c
}

// Providers returns the authorization set in a stable order.
func (p Patient) Providers() []common.Address {
	out := make([]common.Address, 0, len(p.AuthorizedProviders))
	for k := range p.AuthorizedProviders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Identity is a verified assertion of who is calling.
type Identity struct {
	Address common.Address
	Role    string
}

// KeyRecord holds the active symmetric key of a patient.
type KeyRecord struct {
	Patient  common.Address `json:"patientAddress"`
	Key      string         `json:"key"`
	StoredAt time.Time      `json:"storedAt"`
}
