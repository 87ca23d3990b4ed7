package usecase

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/xxh3"
)

const lockStripes = 256

// stripedLock serializes work per address without a mutex per patient.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) Lock(address common.Address) (unlock func()) {
	m := &l.stripes[xxh3.Hash(address[:])%lockStripes]
	m.Lock()
	return m.Unlock
}
