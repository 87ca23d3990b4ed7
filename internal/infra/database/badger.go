package database

import (
	"github.com/dgraph-io/badger/v4"
)

// NewBadger opens a badger store at path. An empty path opens an in-memory
// store.
func NewBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}
