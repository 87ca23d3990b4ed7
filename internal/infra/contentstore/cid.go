package contentstore

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/internal/domain"
)

var cidPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// Locator returns the CIDv1 (raw, sha2-256) of data, the same identifier
// `ipfs add --cid-version=1 --raw-leaves` gives a single-block file.
func Locator(data []byte) (string, error) {
	c, err := cidPrefix.Sum(data)
	if err != nil {
		return "", errors.Wrap(err, "contentstore.Locator: cid sum failed")
	}
	return c.String(), nil
}

func parseLocator(locator string) (cid.Cid, error) {
	c, err := cid.Decode(locator)
	if err != nil {
		return cid.Undef, errors.Wrapf(domain.ErrInvalidArgument, "invalid locator %q", locator)
	}
	return c, nil
}

// verify checks that data hashes to the given locator.
func verify(c cid.Cid, data []byte) error {
	got, err := c.Prefix().Sum(data)
	if err != nil {
		return errors.Wrap(domain.ErrStorageFailure, err.Error())
	}
	if !got.Equals(c) {
		return errors.Wrapf(domain.ErrStorageFailure, "content does not match locator %s", c)
	}
	return nil
}
