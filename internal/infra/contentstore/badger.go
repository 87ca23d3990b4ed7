package contentstore

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/internal/domain"
)

const badgerBlobPrefix = "blob/"

// BadgerStore is a local content-addressed blob store.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Put(ctx context.Context, data []byte) (string, error) {
	locator, err := Locator(data)
	if err != nil {
		return "", errors.Wrap(domain.ErrStorageFailure, err.Error())
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerBlobPrefix+locator), data)
	})
	if err != nil {
		return "", errors.Wrapf(domain.ErrStorageFailure, "badger write: %v", err)
	}
	return locator, nil
}

func (s *BadgerStore) Get(ctx context.Context, locator string) ([]byte, error) {
	c, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerBlobPrefix + c.String()))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrBlobNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(domain.ErrStorageFailure, "badger read: %v", err)
	}
	return data, nil
}
