package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an actor identity.
const AddressLength = 20

// Address identifies an independently deployed actor or an external account.
// Actors reference each other by address only; the runtime resolves an
// address to a live actor at call time.
type Address [AddressLength]byte

// ZeroAddress is the unset identity. It is never a valid actor address.
var ZeroAddress Address

// BytesToAddress converts b to an Address, left-padding with zeroes when b is
// shorter than twenty bytes and keeping the rightmost twenty when longer.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// ParseAddress decodes a hex identity with or without a 0x prefix.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(trimmed) != AddressLength*2 {
		return Address{}, fmt.Errorf("types: address %q must be %d hex characters", s, AddressLength*2)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("types: address %q is not valid hex: %w", s, err)
	}
	return BytesToAddress(raw), nil
}

// Bytes returns the identity as a fresh byte slice.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the identity is unset.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Hex renders the identity as 0x-prefixed lowercase hex.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}
