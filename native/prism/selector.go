package prism

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// MethodID is the short binary identifier used to dispatch a cross-actor
// call. It is derived from the method name, never assigned by hand, so a
// caller and callee compiled separately agree on the same identifier.
type MethodID [4]byte

// SelectorOf hashes a method name into its dispatch identifier.
func SelectorOf(method string) MethodID {
	sum := blake3.Sum256([]byte(method))
	var id MethodID
	copy(id[:], sum[:4])
	return id
}

func (id MethodID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}
