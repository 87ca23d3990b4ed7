package healthvault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress accepts a 0x-prefixed or bare hex address in any letter case.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// SameAddress compares two addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
